package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/IronJam11/zk-carbon/internal/audit"
	"github.com/IronJam11/zk-carbon/internal/auth"
	"github.com/IronJam11/zk-carbon/internal/config"
	"github.com/IronJam11/zk-carbon/internal/ratelimit"
	"github.com/IronJam11/zk-carbon/internal/registry"
	"github.com/IronJam11/zk-carbon/internal/sweeper"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Open the registry store
	store, err := registry.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open registry store", zap.Error(err))
	}
	defer store.Close()

	// Audit sink (optional)
	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.Audit.DatabaseURL), &gorm.Config{})
		if err != nil {
			logger.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		recorder, err = audit.NewGormRecorder(db, logger)
		if err != nil {
			logger.Fatal("Failed to initialize audit recorder", zap.Error(err))
		}
		logger.Info("Audit sink enabled")
	}

	service := registry.NewService(store, logger, recorder)
	handler := registry.NewHandler(service, logger)

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Request id
	router.Use(func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	})

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Caller identity
	if cfg.Security.JWTSecret != "" {
		router.Use(auth.JWT([]byte(cfg.Security.JWTSecret)))
	} else {
		logger.Warn("No JWT secret configured, trusting gateway header")
		router.Use(auth.TrustedHeader())
	}

	// Rate limiting (optional)
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse redis url", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		limiter := ratelimit.NewLimiter(rdb, cfg.Redis.RateLimit, cfg.Redis.RateWindow, logger)
		router.Use(limiter.Middleware())
		logger.Info("Rate limiter enabled",
			zap.Int("rate", cfg.Redis.RateLimit),
			zap.Duration("window", cfg.Redis.RateWindow))
	}

	// Register Routes
	api := router.Group("/api/v1")
	{
		handler.RegisterRoutes(api)
	}

	// Finalization sweeper (optional, shares the store via the service)
	if cfg.Sweeper.Schedule != "" {
		sw := sweeper.New(service, cfg.Sweeper.Schedule, logger)
		if err := sw.Start(); err != nil {
			logger.Fatal("Failed to start finalization sweeper", zap.Error(err))
		}
		defer sw.Stop()
	}

	// Start Server
	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", cfg.Server.GetServerAddr()))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
