package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ahkhan/chatpay-server/internal/api"
	"github.com/ahkhan/chatpay-server/internal/cache"
	"github.com/ahkhan/chatpay-server/internal/config"
	"github.com/ahkhan/chatpay-server/internal/observability/metrics"
	"github.com/ahkhan/chatpay-server/internal/repository"
	"github.com/ahkhan/chatpay-server/internal/service"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Set up the Redis-backed cache when an address is configured
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo)

	// Create API handler
	handler := api.NewHandler(svc, cache.New(redisClient))

	// Set up Gin router
	if cfg.Server.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(metrics.GinMiddleware())

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logrus.Infof("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
