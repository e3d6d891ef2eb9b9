package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Search    SearchConfig    `mapstructure:"search"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Registry  RegistryConfig  `mapstructure:"registry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RedisConfig holds connection settings for the search index.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SearchConfig holds query-path deadlines and limits.
type SearchConfig struct {
	AutocompleteTimeoutMs int `mapstructure:"autocomplete_timeout_ms"`
	SearchTimeoutMs       int `mapstructure:"search_timeout_ms"`
	BrokeredTimeoutMs     int `mapstructure:"brokered_timeout_ms"`
	RequestSlackMs        int `mapstructure:"request_slack_ms"`
	DefaultLimit          int `mapstructure:"default_limit"`
	MaxLimit              int `mapstructure:"max_limit"`
}

// ProviderConfig holds settings for a single brokered provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// ProvidersConfig holds settings for all brokered providers.
type ProvidersConfig struct {
	News    ProviderConfig `mapstructure:"news"`
	Video   ProviderConfig `mapstructure:"video"`
	Ratings ProviderConfig `mapstructure:"ratings"`
	LastFM  ProviderConfig `mapstructure:"lastfm"`
}

// RegistryConfig holds cache-version registry settings.
type RegistryConfig struct {
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec"`
}

// Default returns a Config with default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadEnvFile loads environment variables from an env file before
// configuration is read. Defaults to config/local.env; set ENV_FILE to
// override. A missing file is not an error.
func LoadEnvFile() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = "config/local.env"
	}
	_ = godotenv.Load(path)
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediacircle")
	}

	v.SetEnvPrefix("MEDIACIRCLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Provider credentials follow the deployment convention of the
	// upstream services: plain env vars, not config keys.
	bindProviderEnv(cfg)

	return cfg, nil
}

// bindProviderEnv fills provider credentials from well-known env vars when
// the config file leaves them empty.
func bindProviderEnv(cfg *Config) {
	if cfg.Providers.News.APIKey == "" {
		cfg.Providers.News.APIKey = os.Getenv("NYTIMES_API_KEY")
	}
	if cfg.Providers.Video.APIKey == "" {
		cfg.Providers.Video.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if cfg.Providers.Ratings.BaseURL == "" {
		cfg.Providers.Ratings.BaseURL = os.Getenv("RATINGS_API_URL")
	}
	if cfg.Providers.LastFM.APIKey == "" {
		cfg.Providers.LastFM.APIKey = os.Getenv("LASTFM_API_KEY")
	}
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6380)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	// Search defaults
	v.SetDefault("search.autocomplete_timeout_ms", 250)
	v.SetDefault("search.search_timeout_ms", 1500)
	v.SetDefault("search.brokered_timeout_ms", 2500)
	v.SetDefault("search.request_slack_ms", 500)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)

	// Provider defaults
	v.SetDefault("providers.news.base_url", "https://api.nytimes.com/svc/search/v2")
	v.SetDefault("providers.news.timeout", 3)
	v.SetDefault("providers.video.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("providers.video.timeout", 3)
	v.SetDefault("providers.ratings.timeout", 3)
	v.SetDefault("providers.lastfm.base_url", "https://ws.audioscrobbler.com/2.0")
	v.SetDefault("providers.lastfm.timeout", 3)

	// Registry defaults
	v.SetDefault("registry.refresh_interval_sec", 300)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the Redis address string.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
