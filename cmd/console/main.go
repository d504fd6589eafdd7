package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lunia-systems/lunia-console/internal/actions"
	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/audit"
	"github.com/lunia-systems/lunia-console/internal/branding"
	"github.com/lunia-systems/lunia-console/internal/config"
	"github.com/lunia-systems/lunia-console/internal/handler"
	"github.com/lunia-systems/lunia-console/internal/middleware"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
	"github.com/lunia-systems/lunia-console/internal/service"
	"github.com/lunia-systems/lunia-console/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Local .env support, then logger
	_ = godotenv.Load()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Control API client
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout())

	// 3. Session persistence (Redis > state file)
	var repo session.Repo
	if cfg.Session.RedisAddr != "" {
		redisRepo, err := session.NewRedisRepo(cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB, cfg.Session.RedisKey)
		if err == nil {
			logger.Info("✅ Session state in Redis", "addr", cfg.Session.RedisAddr)
			repo = redisRepo
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to state file", "error", err)
		}
	}
	if repo == nil {
		repo = session.NewFileRepo(cfg.Session.File)
	}

	sessions := session.NewStore(client, repo, cfg.Auth.DefaultRole, logger.Get())

	// Best-effort profile refresh for a restored bearer session.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.RefreshProfile(ctx)
	}()

	// 4. Core services
	fallback := model.Branding{
		BrandName:    cfg.Branding.Name,
		LogoURL:      cfg.Branding.LogoURL,
		SupportEmail: cfg.Branding.SupportEmail,
		PrimaryColor: cfg.Branding.PrimaryColor,
		TenantID:     cfg.Branding.TenantID,
		Environment:  cfg.Branding.Environment,
	}
	brand := branding.NewResolver(client, fallback, logger.Get())

	console := service.NewConsole(cfg, client, sessions, brand)
	console.Start()

	ring := audit.NewRing(audit.DefaultCapacity)
	dispatcher := actions.NewDispatcher(client, sessions, ring, cfg.Actions.QPS, cfg.Actions.Burst)

	// 5. Handlers
	consoleHandler := handler.NewConsoleHandler(console, sessions, dispatcher, ring)
	streamHandler := handler.NewStreamHandler(console)

	// 6. Router
	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "lunia-console"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/login", consoleHandler.LoginInfo)
	r.POST("/login", consoleHandler.Login)
	r.POST("/logout", consoleHandler.Logout)
	r.GET("/session", consoleHandler.Session)
	r.PATCH("/session", consoleHandler.PatchSession)
	r.GET("/audit/local", consoleHandler.LocalAudit)
	r.GET("/ws", streamHandler.Serve)

	r.GET("/surfaces/:name", middleware.RoleGuard(sessions), consoleHandler.Surface)
	r.POST("/actions/:name", middleware.ControlGuard(sessions), consoleHandler.Action)

	// 7. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 Lunia Console started", "port", cfg.Server.Port, "api", cfg.API.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down console...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	console.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Console exiting")
}
