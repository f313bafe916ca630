// Package app assembles the survey service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"basegraph.app/copilot-survey/common/llm"
	"basegraph.app/copilot-survey/core/config"
	"basegraph.app/copilot-survey/core/db"
	"basegraph.app/copilot-survey/internal/issuetemplate"
	"basegraph.app/copilot-survey/internal/language"
	"basegraph.app/copilot-survey/internal/service"
	"basegraph.app/copilot-survey/internal/service/issue_tracker"
	"basegraph.app/copilot-survey/internal/store"
	"basegraph.app/copilot-survey/internal/telemetry"
)

const lockKeyPrefix = "survey:lock:"

// App holds the long-lived clients shared by the server and the worker.
type App struct {
	Config   config.Config
	DB       *db.DB        // nil unless STORE_BACKEND=postgres
	Redis    *redis.Client // nil unless REDIS_URL is set
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Services *service.Services
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = telemetry.NewMetrics(a.Registry)

	tracker, err := issue_tracker.NewGitHubIssueTracker(ctx, issue_tracker.GitHubConfig{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	if cfg.Pipeline.RedisEnabled() {
		a.Redis, err = ConnectRedis(ctx, cfg.Pipeline.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)
	}

	stores, err := a.surveyStores(ctx, tracker)
	if err != nil {
		a.Close()
		return nil, err
	}

	templates, err := issuetemplate.NewEmbeddedSource()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading issue templates: %w", err)
	}

	detector := language.NewStaticDetector(cfg.DefaultLocale)
	if cfg.LanguageLLM.Enabled() {
		client, err := llm.New(llm.Config{
			APIKey:     cfg.LanguageLLM.APIKey,
			BaseURL:    cfg.LanguageLLM.BaseURL,
			Model:      cfg.LanguageLLM.Model,
			MaxRetries: 2,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating language llm client: %w", err)
		}
		detector = language.NewLLMDetector(client)
		slog.InfoContext(ctx, "language detection enabled", "model", client.Model())
	}

	var locker store.Locker = store.NewNoopLocker()
	if a.Redis != nil {
		locker = store.NewRedisLocker(a.Redis, lockKeyPrefix)
	}

	var sink telemetry.Sink = telemetry.NewNoopSink()
	if cfg.OTel.Enabled() {
		sink = telemetry.NewOTelSink()
	}

	a.Services = service.NewServices(service.SurveyDeps{
		Tracker:   tracker,
		Stores:    stores,
		Locker:    locker,
		Detector:  detector,
		Templates: templates,
		Sink:      sink,
		Metrics:   a.Metrics,
	}, service.SurveyOptions{
		DefaultLocale: cfg.DefaultLocale,
		LockTTL:       cfg.Store.LockTTL,
	})

	return a, nil
}

func (a *App) surveyStores(ctx context.Context, tracker issue_tracker.IssueTracker) (store.Factory, error) {
	switch a.Config.Store.Backend {
	case config.StoreBackendPostgres:
		database, err := db.New(ctx, a.Config.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.DB = database
		slog.InfoContext(ctx, "database connected", "backend", a.Config.Store.Backend)
		return store.NewSharedFactory(store.NewPostgresStore(database)), nil
	default:
		slog.InfoContext(ctx, "storing results on branch",
			"branch", a.Config.Store.ResultsBranch,
			"path", a.Config.Store.ResultsPath)
		return store.NewBranchFactory(tracker, a.Config.Store.ResultsBranch, a.Config.Store.ResultsPath), nil
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}
