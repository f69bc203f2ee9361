package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	_ "github.com/lib/pq"

	"github.com/trendwatch/trendwatch/internal/aggregate"
	"github.com/trendwatch/trendwatch/internal/api"
	"github.com/trendwatch/trendwatch/internal/candidates"
	"github.com/trendwatch/trendwatch/internal/classify"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/database"
	"github.com/trendwatch/trendwatch/internal/harvest"
	"github.com/trendwatch/trendwatch/internal/logging"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/orchestrator"
	"github.com/trendwatch/trendwatch/internal/scheduler"
	"github.com/trendwatch/trendwatch/internal/server"
	"github.com/trendwatch/trendwatch/internal/trends"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting trendwatch")

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		db       *sql.DB
		newsRepo harvest.NewsRepository
		candRepo candidates.Repository
		runRepo  orchestrator.RunRepository
		snapRepo aggregate.SnapshotRepository
		alrtRepo aggregate.AlertRepository
	)
	if cfg.Database.URL != "" {
		logger.Info("connecting to database")
		db, err = database.Connect(context.Background(), database.Config{
			URL:                cfg.Database.URL,
			MaxConnections:     cfg.Database.MaxConnections,
			MaxIdleConnections: cfg.Database.MaxIdleConnections,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(db, "./migrations", logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		newsRepo = database.NewPostgresNewsRepository(db)
		candRepo = database.NewPostgresCandidateRepository(db)
		runRepo = database.NewPostgresRunRepository(db)
		snapRepo = database.NewPostgresSnapshotRepository(db)
		alrtRepo = database.NewPostgresAlertRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		newsRepo = harvest.NewMemoryNewsRepository()
		candRepo = candidates.NewMemoryRepository()
		runRepo = orchestrator.NewMemoryRunRepository()
		snapRepo = aggregate.NewMemorySnapshotRepository()
		alrtRepo = aggregate.NewMemoryAlertRepository()
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Classifier: real OpenAI when a key is configured, keyword mock otherwise.
	var classifier classify.Classifier
	if cfg.Classifier.APIKey != "" {
		classifier = classify.NewOpenAIClassifier(cfg.Classifier, logger)
		logger.Info("using OpenAI classifier", "model", cfg.Classifier.Model)
	} else {
		classifier = classify.NewMockClassifier()
		logger.Warn("OPENAI_API_KEY not set, using mock classifier")
	}

	// Probe: the HTTP trends API when a base URL is configured.
	var probe trends.Probe
	if cfg.Trends.BaseURL != "" {
		probe = trends.NewHTTPProbe(cfg.Trends, logger)
		logger.Info("using HTTP trends probe", "base_url", cfg.Trends.BaseURL)
	} else {
		probe = trends.NewMockProbe()
		logger.Warn("TRENDS_API_URL not set, using mock probe")
	}

	manager := candidates.NewManager(candRepo, classifier, cfg.Candidates, logger)
	manager.SetCollector(collector)
	manager.SetNewsLookup(func(ctx context.Context, newsItemID string) string {
		item, err := newsRepo.GetByID(ctx, newsItemID)
		if err != nil || item == nil {
			return ""
		}
		return item.Title + " " + item.Summary
	})

	connector := harvest.NewFeedConnector(cfg.Harvest.FeedURLs, cfg.Harvest.FetchTimeout, logger)
	harvester := harvest.NewHarvester(connector, newsRepo, manager, cfg.Harvest, logger)
	harvester.SetCollector(collector)

	aggregator := aggregate.New(snapRepo, alrtRepo, cfg.Aggregate, logger)
	aggregator.SetCollector(collector)

	orch := orchestrator.New(runRepo, probe, manager, aggregator, cfg.Runs, logger)
	orch.SetCollector(collector)

	handler := api.NewHandler(harvester, manager, orch, aggregator, &cfg, logger)
	handler.SetDB(db)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, handler, &cfg, collector, logger)

	sched := scheduler.New(harvester, manager, orch, cfg.Scheduler, logger)
	if err := sched.Start(cfg.Harvest.BatchSize); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("trendwatch started", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	sched.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
