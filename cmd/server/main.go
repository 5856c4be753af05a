package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/89hikari/telegram-clone-backend/internal/config"
	"github.com/89hikari/telegram-clone-backend/internal/db"
	"github.com/89hikari/telegram-clone-backend/internal/handler"
	"github.com/89hikari/telegram-clone-backend/internal/middleware"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	"github.com/89hikari/telegram-clone-backend/internal/service"
	"github.com/89hikari/telegram-clone-backend/internal/ws"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		appLogger.Fatal("Failed to run migrations", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, cfg, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	registry := ws.NewRegistry()
	hub := ws.NewHub(registry, rdb, appLogger)
	go hub.Run(ctx)

	gateway := ws.NewGateway(registry, hub, services.Auth, services.Message, services.Group, services.Presence, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.Throttle, appLogger)

	handlers := handler.NewHandlers(services, gateway, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	router.GET("/ws", handlers.WebSocket.Handle)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rateLimitMiddleware.Limit(), handlers.Auth.Register)
			auth.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			users := protected.Group("/users")
			{
				users.GET("", handlers.User.Search)
				users.GET("/:id", handlers.User.GetByID)
				users.GET("/:id/avatar", handlers.User.GetAvatar)
				users.PUT("/me/avatar", handlers.User.UploadAvatar)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("", handlers.Message.LastMessages)
				messages.GET("/:peerId", handlers.Message.History)
				messages.POST("", handlers.Message.Send)
				messages.PATCH("/:id", handlers.Message.Edit)
			}

			groups := protected.Group("/groups")
			{
				groups.POST("", handlers.Group.Create)
				groups.GET("", handlers.Group.List)
				groups.POST("/:id/members", handlers.Group.AddMember)
				groups.GET("/:id/messages", handlers.Group.Messages)
				groups.POST("/:id/messages", handlers.Group.SendMessage)
				groups.PATCH("/messages/:id", handlers.Group.EditMessage)
			}
		}
	}

	return router
}
