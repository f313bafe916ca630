package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/copilot-survey/common/id"
	"basegraph.app/copilot-survey/common/logger"
	"basegraph.app/copilot-survey/common/otel"
	"basegraph.app/copilot-survey/core/config"
	"basegraph.app/copilot-survey/internal/app"
	"basegraph.app/copilot-survey/internal/http/handler/webhook"
	"basegraph.app/copilot-survey/internal/http/middleware"
	httprouter "basegraph.app/copilot-survey/internal/http/router"
	"basegraph.app/copilot-survey/internal/mapper"
	"basegraph.app/copilot-survey/internal/queue"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg, config.ServiceTypeServer)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "survey server starting",
		"env", cfg.Env,
		"mode", cfg.Pipeline.Mode,
		"store", cfg.Store.Backend)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	var producer queue.Producer
	if cfg.Pipeline.Queued() {
		producer = queue.NewRedisProducer(application.Redis, cfg.Pipeline.RedisStream, slog.Default())
	}

	dedupe := queue.NewNoopDeduplicator()
	if application.Redis != nil {
		dedupe = queue.NewRedisDeduplicator(application.Redis, queue.DefaultDeliveryTTL)
	}

	githubHandler := webhook.NewGitHubWebhookHandler(
		mapper.NewGitHubEventMapper(),
		application.Services.Survey(),
		producer,
		dedupe,
		application.Metrics,
		webhook.GitHubWebhookConfig{
			Secret:      cfg.GitHub.WebhookSecret,
			TraceHeader: cfg.Pipeline.TraceHeaderName,
		},
	)
	if cfg.GitHub.WebhookSecret == "" {
		slog.WarnContext(ctx, "GITHUB_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, application, githubHandler)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, application *app.App, githubHandler *webhook.GitHubWebhookHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	httprouter.SetupRoutes(router, githubHandler, httprouter.RouterConfig{
		Gatherer: application.Registry,
	})

	return router
}

const banner = `
+------------------------------------+
|  copilot-survey server             |
+------------------------------------+
`
