package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imagegen/internal/backend"
	"imagegen/internal/cache"
	"imagegen/internal/catalog"
	"imagegen/internal/config"
	"imagegen/internal/core"
	"imagegen/internal/dispatch"
	"imagegen/internal/log"
	"imagegen/internal/metrics"
	"imagegen/internal/process"
	"imagegen/internal/quota"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	router *gin.Engine

	models    *catalog.ModelRegistry
	styles    *catalog.StyleCatalog
	limiter   *quota.Limiter
	processor *process.PromptProcessor

	dispatcher          *dispatch.Dispatcher
	generatorConfigured bool

	enhanceCache   *cache.EnhancementCache
	metricsService *metrics.MetricsService

	config config.ServerConfig

	rateLimiter *rateLimiter

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

type serverOptions struct {
	generator core.ImageGenerator
	completer core.TextCompleter
	clock     func() time.Time
}

// Option overrides a server collaborator
type Option func(*serverOptions)

// WithImageGenerator replaces the OpenAI-compatible image client.
func WithImageGenerator(g core.ImageGenerator) Option {
	return func(o *serverOptions) { o.generator = g }
}

// WithTextCompleter replaces the OpenAI-compatible chat client.
func WithTextCompleter(tc core.TextCompleter) Option {
	return func(o *serverOptions) { o.completer = tc }
}

// WithQuotaClock overrides the clock used for quota day boundaries.
func WithQuotaClock(now func() time.Time) Option {
	return func(o *serverOptions) { o.clock = now }
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, opts ...Option) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	models, err := catalog.NewModelRegistry(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to build model registry: %w", err)
	}
	styles, err := catalog.NewStyleCatalog(cfg.Styles)
	if err != nil {
		return nil, fmt.Errorf("failed to build style catalog: %w", err)
	}

	cfg.Logger.Info("Initializing server with %d models and %d styles", len(models.List()), len(styles.ListAll()))

	httpClient := backend.NewHTTPClient(cfg.HTTPClientSettings)

	generator := o.generator
	if generator == nil && cfg.ImageAPIKey != "" {
		generator = backend.NewImageClient(cfg.ImageAPIKey, cfg.ImageBaseURL, httpClient, log.WithPrefix(cfg.Logger, "image"))
	}
	completer := o.completer
	if completer == nil && cfg.TextEnabled() {
		completer = backend.NewTextClient(cfg.TextAPIKey, cfg.TextBaseURL, cfg.TextModelEndpoint, httpClient)
	}

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})

	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	var store quota.Store
	if cfg.RedisClient != nil {
		cfg.Logger.Info("Using Redis quota store (prefix %s)", cfg.QuotaKeyPrefix)
		store = quota.NewRedisStore(cfg.RedisClient, cfg.QuotaKeyPrefix)
	} else {
		ids := make([]string, 0, len(cfg.Models))
		for _, m := range models.List() {
			ids = append(ids, m.ID)
		}
		cfg.Logger.Info("Using in-memory quota store, quotas apply per process")
		store = quota.NewMemoryStore(ids...)
	}

	limiterOpts := []quota.Option{quota.WithLogger(log.WithPrefix(cfg.Logger, "quota"))}
	if o.clock != nil {
		limiterOpts = append(limiterOpts, quota.WithClock(o.clock))
	}
	limiter := quota.NewLimiter(models.Quotas(), store, limiterOpts...)

	var enhanceCache *cache.EnhancementCache
	if completer != nil {
		enhanceCache = cache.NewEnhancementCache(core.EnhancementCacheTTL)
	}

	processor := process.NewPromptProcessor(
		process.ProcessorConfig{RawMarker: cfg.RawModeMarker, EnhanceTimeout: cfg.EnhanceTimeout},
		styles, completer, enhanceCache, metricsService, log.WithPrefix(cfg.Logger, "prompt"),
	)

	dispatcher := dispatch.NewDispatcher(
		dispatch.Config{DefaultModelID: cfg.DefaultModelID, MaxPromptLength: cfg.MaxPromptLength},
		dispatch.Dependencies{
			Models:    models,
			Processor: processor,
			Generator: generator,
			Quota:     limiter,
			Access:    dispatch.NewAccessController(cfg.AccessCode),
			Metrics:   metricsService,
			Logger:    cfg.Logger,
		},
	)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:                cfg.Port,
		ginMode:             cfg.GinMode,
		models:              models,
		styles:              styles,
		limiter:             limiter,
		processor:           processor,
		dispatcher:          dispatcher,
		generatorConfigured: generator != nil,
		enhanceCache:        enhanceCache,
		metricsService:      metricsService,
		config:              cfg,
		rateLimiter:         newRateLimiter(cfg.RateLimit),
		shutdownCtx:         shutdownCtx,
		shutdownCancel:      shutdownCancel,
	}

	server.setupRoutes()

	return server, nil
}

// Handler exposes the router for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.HTTPClientSettings.RequestTimeout + s.config.EnhanceTimeout + 30*time.Second,
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("Server starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.enhanceCache != nil {
		if err := s.enhanceCache.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close enhancement cache: %w", err))
		}
	}

	return closeErr
}
