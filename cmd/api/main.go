package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/api/handlers"
	apimiddleware "github.com/42cats/crime-cat-sub002/internal/api/middleware"
	"github.com/42cats/crime-cat-sub002/internal/api/routes"
	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/42cats/crime-cat-sub002/internal/domain/meeting"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/cache"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/persistence/postgres/connection"
	"github.com/42cats/crime-cat-sub002/internal/infrastructure/persistence/postgres/migrations"
	"github.com/42cats/crime-cat-sub002/pkg/config"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLoggerMiddleware logs all incoming HTTP requests
func RequestLoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("Request completed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("") // Empty string will make it search in default locations
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	log.Info("Configuration loaded successfully")
	log.Info("Server mode: " + cfg.Server.Mode)

	// Set up Gin
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	gin.DefaultWriter = os.Stdout

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware(log))
	router.Use(apimiddleware.NewMetricsMiddleware().CollectMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowMethods: cfg.CORS.AllowedMethods,
		AllowHeaders: append(cfg.CORS.AllowedHeaders,
			"Content-Type",
			apimiddleware.UserIDHeader,
		),
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	// Connect to database
	db, err := connection.NewDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if err := migrations.AutoMigrate(db, log.Logger); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Connect to Redis
	redisClient, err := cache.NewRedisClient(cache.NewConfigFromEnv(cfg), log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	availabilityRepo := availability.NewRepository(db.DB)
	meetingRepo := meeting.NewRepository(db.DB)

	// Initialize services
	syncer := availability.NewSyncer(availabilityRepo, redisClient, log, cfg.Engine.FeedSyncTimeout, cfg.Engine.BusyIntervalTTL)
	availabilityService := availability.NewService(availabilityRepo, syncer, redisClient, log, cfg.Engine)
	meetingService := meeting.NewService(meetingRepo, availabilityService, redisClient, log, cfg.Engine)

	// Initialize handlers and routes
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService)
	meetingHandler := handlers.NewMeetingHandler(meetingService)

	routes.SetupHealthRoutes(router, db, redisClient)
	routes.NewAvailabilityRoutes(availabilityHandler).RegisterRoutes(router)
	routes.NewMeetingRoutes(meetingHandler).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
