package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appfulfillment "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/persistence"
	"github.com/fulfillment/backend/internal/interfaces/http/handler"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/fulfillment/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Fulfillment Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with a zap-backed GORM logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Reconciliation pipeline: source reader -> aggregation -> snapshot cache
	sourceReader := persistence.NewGormSourceReader(db.DB)

	detector := fulfillment.NewAnomalyDetector(anomalyConfig(cfg, log))
	aggregationService := appfulfillment.NewAggregationService(
		sourceReader,
		detector,
		appfulfillment.WithAggregationLogger(log),
	)
	snapshotCache := appfulfillment.NewSnapshotCache(
		aggregationService.Aggregate,
		appfulfillment.WithCacheLogger(log),
	)

	viewService := appfulfillment.NewViewService(snapshotCache, log)
	exportService := appfulfillment.NewExportService(snapshotCache, log)

	// Initialize handlers
	defaultFormat, err := appfulfillment.ParseExportFormat(cfg.Export.DefaultFormat)
	if err != nil {
		log.Fatal("Invalid default export format",
			zap.String("format", cfg.Export.DefaultFormat),
			zap.Error(err),
		)
	}
	fulfillmentHandler := handler.NewFulfillmentHandler(
		viewService,
		exportService,
		snapshotCache,
		handler.WithDefaultExportFormat(defaultFormat),
	)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (no auth, outside the versioned API)
	engine.GET("/health", systemHandler.Health)

	// Register the versioned API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(fulfillmentHandler).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// anomalyConfig builds detection thresholds from configuration, falling back
// to the documented defaults when a value is absent or unparsable.
func anomalyConfig(cfg *config.Config, log *zap.Logger) fulfillment.AnomalyConfig {
	out := fulfillment.DefaultAnomalyConfig()
	if cfg.Reconciliation.StalenessDays > 0 {
		out.StalenessDays = cfg.Reconciliation.StalenessDays
	}
	if cfg.Reconciliation.FragmentationThreshold > 0 {
		out.FragmentationThreshold = cfg.Reconciliation.FragmentationThreshold
	}
	if raw := cfg.Reconciliation.RoundingTolerance; raw != "" {
		tolerance, err := decimal.NewFromString(raw)
		if err != nil || !tolerance.IsPositive() {
			log.Warn("Invalid rounding tolerance, using default",
				zap.String("value", raw),
				zap.Error(err),
			)
		} else {
			out.RoundingTolerance = tolerance
		}
	}
	return out
}
