package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voicelink-backend/internal/database"
	callHandler "voicelink-backend/internal/handler/http/call"
	chatHandler "voicelink-backend/internal/handler/http/chat"
	notificationHandler "voicelink-backend/internal/handler/http/notification"
	presenceHandler "voicelink-backend/internal/handler/http/presence"
	wsHandler "voicelink-backend/internal/handler/ws"
	"voicelink-backend/internal/middleware"
	"voicelink-backend/internal/presence"
	"voicelink-backend/internal/repository/memory"
	redisRepo "voicelink-backend/internal/repository/redis"
	"voicelink-backend/internal/room"
	callService "voicelink-backend/internal/service/call"
	chatService "voicelink-backend/internal/service/chat"
	"voicelink-backend/internal/service/fanout"
	notificationService "voicelink-backend/internal/service/notification"
	"voicelink-backend/pkg/config"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/resilience"
)

const (
	redisHealthInterval = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Initialize logger
	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
		Service:  cfg.Server.ServiceName,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// 3. Initialize Metrics
	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)

	// 4. Initialize Redis with degraded mode support. Redis is optional:
	// it only mirrors presence and backs the rate limiter.
	var redisDB *database.RedisClient
	var presenceRepo *redisRepo.PresenceRepository
	registryOpts := []presence.Option{presence.WithMetrics(appMetrics)}
	if cfg.Redis.Enabled {
		redisDB = database.NewRedisDB(&database.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Timeout:  cfg.Redis.Timeout,
		}, appMetrics)
		defer redisDB.Close()

		if err := redisDB.HealthCheck(ctx); err != nil {
			logger.Warn("Redis unavailable, starting in degraded mode", zap.Error(err))
		} else {
			logger.Info("Connected to Redis",
				zap.String("host", cfg.Redis.Host),
				zap.Int("port", cfg.Redis.Port))
		}

		g.Go(func() error {
			redisDB.StartHealthCheck(gctx, redisHealthInterval)
			return nil
		})

		presenceRepo = redisRepo.NewPresenceRepository(redisDB, cfg.Redis.PresenceTTL)
		registryOpts = append(registryOpts, presence.WithMirror(presenceRepo))
	} else {
		logger.Info("Redis disabled, presence is not mirrored and rate limits are per process")
	}

	// 5. Initialize presence registry and event fan-out
	registry := presence.NewRegistry(registryOpts...)
	if presenceRepo != nil {
		g.Go(func() error {
			registry.KeepMirrorFresh(gctx, cfg.Redis.PresenceTTL/2)
			return nil
		})
	}
	events := fanout.New(registry, appMetrics)

	// 6. Initialize room provider
	if !cfg.RoomProviderConfigured() {
		logger.Warn("DAILY_API_KEY or DAILY_DOMAIN not set, calls will use placeholder rooms")
	}
	dailyClient := room.NewDailyClient(room.DailyConfig{
		APIKey:  cfg.Room.APIKey,
		Domain:  cfg.Room.Domain,
		BaseURL: cfg.Room.BaseURL,
		Timeout: cfg.Room.Timeout,
	})
	roomBreaker := resilience.NewCircuitBreaker(resilience.Config{Name: "daily"}, appMetrics)
	rooms := room.NewGuardedProvider(dailyClient, roomBreaker, appMetrics)

	// 7. Initialize services
	callSvc := callService.NewService(rooms, cfg.Room.Timeout, appMetrics)
	chatSvc := chatService.NewService(memory.NewMessageRepository(), appMetrics)
	notificationSvc := notificationService.NewService(memory.NewNotificationRepository(), appMetrics)

	// 8. Initialize handlers
	callHdlr := callHandler.NewHandler(callSvc, events)
	chatHdlr := chatHandler.NewHandler(chatSvc, events)
	notificationHdlr := notificationHandler.NewHandler(notificationSvc)
	presenceHdlr := presenceHandler.NewHandler(registry)
	eventsHub := wsHandler.NewEventsHub(registry, wsHandler.HubConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxConnections: cfg.WebSocket.MaxConnections,
		PingInterval:   cfg.WebSocket.PingInterval,
	}, appMetrics)

	// 9. Setup Gin Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New() // Don't use Default() to have full control
	// Rate limits key on the socket address unless a proxy is configured here
	if err := router.SetTrustedProxies(nil); err != nil {
		logger.Fatal("Failed to configure trusted proxies", zap.Error(err))
	}

	timeoutMiddleware := middleware.NewTimeoutMiddleware(&middleware.TimeoutConfig{
		DefaultTimeout: cfg.Server.RequestTimeout,
		SkipPaths:      []string{"/ws"},
	}, appMetrics)
	rateLimiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.Requests, cfg.RateLimit.Window, appMetrics)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())
	router.Use(timeoutMiddleware.Middleware())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "running",
			"service": cfg.Server.ServiceName,
		})
	})

	router.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":           "healthy",
			"service":          cfg.Server.ServiceName,
			"time":             time.Now().UTC(),
			"registered_users": registry.Count(),
			"ws_connections":   eventsHub.Connections(),
			"live_calls":       callSvc.LiveCount(),
			"room_provider":    string(roomBreaker.State()),
		}
		switch {
		case redisDB == nil:
			health["redis"] = "disabled"
		case redisDB.IsDegraded():
			health["redis"] = "degraded"
		default:
			health["redis"] = "ok"
			if count, err := presenceRepo.GetOnlineCount(c.Request.Context()); err == nil {
				health["mirrored_online"] = count
			}
		}
		c.JSON(http.StatusOK, health)
	})

	// Metrics endpoint (for Prometheus scraping)
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	// Realtime channel
	router.GET("/ws", eventsHub.ServeWS)

	api := router.Group("/api")
	api.Use(rateLimiter.Middleware())
	{
		messages := api.Group("/messages")
		messages.POST("/send", chatHdlr.SendMessage)
		messages.GET("/history", chatHdlr.GetHistory)
		messages.GET("/unread", chatHdlr.GetUnread)
		messages.POST("/:id/read", chatHdlr.MarkRead)

		calls := api.Group("/calls")
		calls.POST("/request", callHdlr.RequestCall)
		calls.POST("/respond", callHdlr.RespondCall)
		calls.POST("/end", callHdlr.EndCall)
		calls.GET("", callHdlr.ListCalls)
		calls.GET("/:id", callHdlr.GetCall)

		notifications := api.Group("/notifications")
		notifications.GET("", notificationHdlr.GetNotifications)
		notifications.POST("", notificationHdlr.CreateNotification)
		notifications.POST("/read-all", notificationHdlr.MarkAllAsRead)
		notifications.POST("/:id/read", notificationHdlr.MarkAsRead)
		notifications.DELETE("/:id", notificationHdlr.DeleteNotification)

		api.GET("/presence", presenceHdlr.ListOnline)
		api.GET("/presence/:user", presenceHdlr.GetUser)
	}

	// 10. Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("VoiceLink backend starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.Bool("room_provider_configured", cfg.RoomProviderConfigured()),
			zap.Bool("redis_enabled", cfg.Redis.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
