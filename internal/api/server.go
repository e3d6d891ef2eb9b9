// Package api exposes the HTTP surface: batch and streaming search
// endpoints, details lookup, health and stats.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediacircle/mediacircle/internal/config"
	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/registry"
	"github.com/mediacircle/mediacircle/internal/search"
)

// DetailsStore looks up full documents by mc_id. index.Details is the
// production implementation.
type DetailsStore interface {
	Get(ctx context.Context, mcID string) (media.Document, error)
}

// Server handles HTTP requests for the MediaCircle API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger zerolog.Logger

	searchService *search.Service
	details       DetailsStore
	executor      index.Searcher
	registry      *registry.Registry
	redis         *redis.Client
}

// NewServer creates a new API server instance.
func NewServer(
	cfg *config.Config,
	searchService *search.Service,
	details DetailsStore,
	executor index.Searcher,
	reg *registry.Registry,
	redisClient *redis.Client,
	logger zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:          e,
		cfg:           cfg,
		logger:        logger.With().Str("component", "api").Logger(),
		searchService: searchService,
		details:       details,
		executor:      executor,
		registry:      reg,
		redis:         redisClient,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// SSE responses must not be buffered by compression.
			return strings.HasSuffix(c.Path(), "/stream")
		},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.GET("/autocomplete", s.handleAutocomplete)
	api.GET("/autocomplete/stream", s.handleAutocompleteStream)
	api.GET("/search", s.handleSearch)
	api.GET("/search/stream", s.handleSearchStream)
	api.POST("/details", s.handleDetails)
	api.GET("/stats", s.handleStats)

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	return s.echo.Start(s.cfg.Server.Address())
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	status := map[string]any{"status": "ok", "version": config.Version}
	if s.executor != nil {
		if err := s.executor.Ping(c.Request().Context()); err != nil {
			status["index"] = "unavailable"
		} else {
			status["index"] = "ok"
		}
	}
	return c.JSON(http.StatusOK, status)
}
