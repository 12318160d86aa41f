package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/cache"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/config"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/database"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/instrumentation"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/telemetry"
	"github.com/seatshield/ticket-fraud-backend/internal/metrics"
	"github.com/seatshield/ticket-fraud-backend/internal/service/dashboard"
	"github.com/seatshield/ticket-fraud-backend/internal/service/fraud"
)

// Server is the fraud API server with all its dependencies
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	handler       *Handler
	logger        *slog.Logger
	db            *database.ConnectionPool
	dbMonitor     *database.Monitor
	cache         *cache.CacheManager
	liveFeed      *LiveFeed
	healthService *HealthService
	middlewares   []Middleware
}

// NewServer creates the API server and connects its backing stores.
// A nil logger gets a JSON logger on stdout.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	// Infrastructure packages log through zap.
	zapLogger, _ := zap.NewProduction()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnectionPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cacheManager, err := cache.NewCacheManager(&cfg.Redis, zapLogger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache manager: %w", err)
	}

	registry, err := metrics.NewRegistry("github.com/seatshield/ticket-fraud-backend")
	if err != nil {
		db.Close()
		cacheManager.Close()
		return nil, fmt.Errorf("failed to create metrics registry: %w", err)
	}

	behaviorRepo := database.NewBehaviorRepository(db.Pool(), cfg.Fraud.MaxSessionActions)
	assessmentRepo := database.NewAssessmentRepository(db.Pool())

	liveFeed := NewLiveFeed(cfg.Security.JWTSecret, logger, registry)

	fraudService := fraud.NewService(
		behaviorRepo,
		assessmentRepo,
		buildDetectionConfig(cfg),
		zapLogger,
		fraud.WithPublisher(liveFeed),
		fraud.WithMetrics(registry),
	)
	tracedFraud := instrumentation.NewFraudTracedService(
		fraudService,
		telemetry.NewOpenTelemetryTracer("service.fraud"),
	)

	threatCache := cache.NewThreatCache(cacheManager.Cache, cfg.Dashboard.SnapshotTTL, zapLogger)
	assessmentCache := cache.NewAssessmentCache(cacheManager.Cache, 0, zapLogger)
	dashboardService := dashboard.NewService(assessmentRepo, threatCache, &dashboard.Config{
		Window:         cfg.Dashboard.Window,
		BucketSize:     cfg.Dashboard.BucketSize,
		MaxAssessments: cfg.Dashboard.MaxAssessments,
		StoreTimeout:   cfg.Fraud.StoreTimeout,
	}, zapLogger,
		dashboard.WithAssessmentCache(assessmentCache),
		dashboard.WithMetrics(registry),
	)

	handler := NewHandler(tracedFraud, dashboardService, logger)

	healthService := NewHealthService(cfg.Version)
	healthService.RegisterChecker(&databaseChecker{db: db})
	healthService.RegisterChecker(&redisChecker{cache: cacheManager})

	rateLimiter := NewRateLimiterMiddleware(
		cacheManager.RateLimiter,
		cfg.Security.RateLimit.RequestsPerSecond,
		cfg.Security.RateLimit.BurstSize,
		time.Second,
		logger,
	)

	middlewares := []Middleware{
		recoveryMiddleware(logger),
		requestIDMiddleware,
		loggingMiddleware(logger),
		tracingMiddleware(),
		metricsMiddleware(registry),
		corsMiddleware,
		authMiddleware(cfg.Security.JWTSecret, logger),
		rateLimiter.Middleware(),
		timeoutMiddleware(cfg.Server.WriteTimeout),
	}

	server := &Server{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		db:            db,
		dbMonitor:     database.NewMonitor(db, 0, zapLogger),
		cache:         cacheManager,
		liveFeed:      liveFeed,
		healthService: healthService,
		middlewares:   middlewares,
	}

	mux := server.setupRoutes()

	var h http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	server.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        h,
		ReadTimeout:    cfg.Server.ReadTimeout,
		// No server-level write timeout: the timeout middleware bounds
		// JSON requests and live feed connections stay open for hours.
		WriteTimeout:   0,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health checks
	mux.HandleFunc("GET /health", s.healthService.ReadinessHandler())
	mux.HandleFunc("GET /healthz", s.healthService.LivenessHandler())
	mux.HandleFunc("GET /ready", s.healthService.ReadinessHandler())

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// API v1 routes
	v1 := http.NewServeMux()

	v1.HandleFunc("POST /assessments", s.handler.handleCreateAssessment)
	v1.HandleFunc("GET /assessments/{sessionID}", s.handler.handleGetAssessment)
	v1.HandleFunc("POST /scalping-scans", s.handler.handleScalpingScan)
	v1.HandleFunc("GET /dashboard/threats", s.handler.handleThreats)

	// Live threat feed
	v1.Handle("GET /threats/live", s.liveFeed)

	// Mount v1 routes
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))

	return mux
}

// Start runs the server until an interrupt or a fatal listen error
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"address", s.httpServer.Addr,
		"environment", s.config.Environment,
	)

	s.dbMonitor.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server and its dependencies
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
		return err
	}

	s.liveFeed.Close()

	s.dbMonitor.Stop()
	s.db.Close()

	if err := s.cache.Close(); err != nil {
		s.logger.Error("failed to close cache", "error", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// buildDetectionConfig applies the deploy-tunable knobs on top of the
// default detection tuning. Score weights stay at their defaults.
func buildDetectionConfig(cfg *config.Config) *fraud.DetectionConfig {
	dc := fraud.DefaultDetectionConfig()

	if cfg.Fraud.StoreTimeout > 0 {
		dc.StoreTimeout = cfg.Fraud.StoreTimeout
	}
	if cfg.Fraud.PersistTimeout > 0 {
		dc.PersistTimeout = cfg.Fraud.PersistTimeout
	}
	if cfg.Fraud.IPActivityWindow > 0 {
		dc.IPActivity.Window = cfg.Fraud.IPActivityWindow
	}
	if cfg.Fraud.ScalpingWindow > 0 {
		dc.Scalping.DefaultWindow = cfg.Fraud.ScalpingWindow
	}
	if t := cfg.Fraud.Thresholds; t.Medium > 0 && t.High > 0 && t.Critical > 0 {
		dc.Thresholds = risk.Thresholds{Medium: t.Medium, High: t.High, Critical: t.Critical}
	}
	if t := cfg.Fraud.ScalpingThresholds; t.Medium > 0 && t.High > 0 && t.Critical > 0 {
		dc.Scalping.Thresholds = risk.ScalpingThresholds{Medium: t.Medium, High: t.High, Critical: t.Critical}
	}

	return dc
}
