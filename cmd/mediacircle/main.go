package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediacircle/mediacircle/internal/api"
	"github.com/mediacircle/mediacircle/internal/broker"
	"github.com/mediacircle/mediacircle/internal/broker/lastfm"
	"github.com/mediacircle/mediacircle/internal/broker/nytimes"
	"github.com/mediacircle/mediacircle/internal/broker/ratings"
	"github.com/mediacircle/mediacircle/internal/broker/youtube"
	"github.com/mediacircle/mediacircle/internal/config"
	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/logger"
	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/registry"
	"github.com/mediacircle/mediacircle/internal/search"
	"github.com/mediacircle/mediacircle/internal/startup"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	config.LoadEnvFile()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("addr", cfg.Server.Address()).
		Str("redis", cfg.Redis.Addr()).
		Msg("Starting MediaCircle search service")

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	defer redisClient.Close()

	executor := index.NewExecutor(redisClient, log.Logger)
	details := index.NewDetails(redisClient, log.Logger)

	// The index may still be starting alongside us; don't serve until it
	// answers, but don't crash-loop either.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := startup.WithRetry(pingCtx, "index ping", startup.DefaultRetryConfig(), func() error {
		return executor.Ping(pingCtx)
	}, log.Logger); err != nil {
		log.Warn().Err(err).Msg("Search index unreachable at startup; continuing degraded")
	}
	pingCancel()

	reg := registry.New(redisClient, log.Logger)
	if err := reg.Start(time.Duration(cfg.Registry.RefreshIntervalSec) * time.Second); err != nil {
		log.Warn().Err(err).Msg("Cache-version refresh job failed to start")
	}
	defer reg.Stop()

	brokeredTimeout := time.Duration(cfg.Search.BrokeredTimeoutMs) * time.Millisecond
	lastfmClient := lastfm.NewClient(cfg.Providers.LastFM, log.Logger)

	adapters := map[string]search.BrokeredRunner{
		media.SourceNews:    broker.NewAdapter(nytimes.NewClient(cfg.Providers.News, log.Logger), brokeredTimeout, log.Logger),
		media.SourceVideo:   broker.NewAdapter(youtube.NewClient(cfg.Providers.Video, log.Logger), brokeredTimeout, log.Logger),
		media.SourceRatings: broker.NewAdapter(ratings.NewClient(cfg.Providers.Ratings, log.Logger), brokeredTimeout, log.Logger),
		media.SourceArtist:  broker.NewAdapter(lastfm.ArtistFetcher{Client: lastfmClient}, brokeredTimeout, log.Logger),
		media.SourceAlbum:   broker.NewAdapter(lastfm.AlbumFetcher{Client: lastfmClient}, brokeredTimeout, log.Logger),
	}

	searchService := search.NewService(executor, adapters, search.OptionsFromConfig(cfg.Search), log.Logger)

	server := api.NewServer(cfg, searchService, details, executor, reg, redisClient, log.Logger)

	go func() {
		if err := server.Start(); err != nil {
			log.Info().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
