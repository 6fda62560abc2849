// cmd/risk-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"diabetes-risk/internal/common/camunda"
	"diabetes-risk/internal/common/config"
	"diabetes-risk/internal/common/database"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/observability"
	"diabetes-risk/internal/history"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/notify"
	"diabetes-risk/internal/risk"
	"diabetes-risk/internal/server"
	"diabetes-risk/internal/session"

	adr "diabetes-risk/internal/workers/assessment/assess-diabetes-risk"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	var outputs []string
	if cfg.Logging.Output != "" {
		outputs = append(outputs, cfg.Logging.Output)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting risk server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Model ---
	provider := modelprovider.NewProvider(modelprovider.OptionsFromConfig(cfg.Model), log)
	if m := provider.Acquire(ctx); m != nil {
		zapLog.Info("model ready",
			zap.String("status", string(provider.Status())),
			zap.String("source", m.Source),
			zap.Bool("placeholder", m.Placeholder),
		)
	}

	recs, err := risk.LoadRecommendations(cfg.Scoring.RecommendationsFile)
	if err != nil {
		zapLog.Fatal("recommendations load failed", zap.Error(err))
	}
	jitter, err := risk.NewJitter(cfg.Scoring.Jitter, cfg.Scoring.JitterRange)
	if err != nil {
		zapLog.Fatal("invalid jitter settings", zap.Error(err))
	}
	scorer := risk.NewScorer(recs, log,
		risk.WithLocale(cfg.Scoring.Locale),
		risk.WithJitter(jitter),
		risk.WithObservability(obs),
	)

	// --- Sessions ---
	var sessions session.Store
	var closeSessions func() error
	err = retryWithBackoff(func() error {
		var err error
		sessions, closeSessions, err = session.NewStore(ctx, cfg, log)
		return err
	}, 10, 2*time.Second, zapLog, "Session store initialization")
	if err != nil {
		zapLog.Fatal("session store failed after retries", zap.Error(err))
	}
	defer closeSessions()

	// --- History (PostgreSQL) ---
	var repo history.Repository
	if cfg.History.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store := history.NewPostgresStore(pg.DB, log)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("history schema setup failed", zap.Error(err))
		}
		repo = store
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Search (Elasticsearch) ---
	var index *history.SearchIndex
	if cfg.History.SearchEnabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		index = history.NewSearchIndex(esClient.Client, cfg.History.Index, log)
		if err := index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("search index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notifications (AWS) ---
	notifier, err := notify.NewFromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notification clients failed", zap.Error(err))
	}

	// --- Workflow worker (Zeebe) ---
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFromAppConfig(cfg.Camunda))
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		opts := adr.HandlerOptions{
			Config:  adr.ConfigFromAppConfig(cfg),
			Models:  provider,
			Scorer:  scorer,
			History: repo,
			Alerter: notifier,
			Logger:  log,
		}
		handler, err := adr.NewHandler(opts)
		if err != nil {
			zapLog.Fatal("worker setup failed", zap.Error(err))
		}

		w := camunda.StartWorker(zeebe.GetClient(), adr.TaskType, handler.WorkerOptions(), handler.Handle, log)
		defer w.Stop()
	}

	// --- HTTP ---
	srvOpts := server.Options{
		Server:       cfg.Server,
		Session:      cfg.Session,
		HistoryLimit: cfg.History.ListLimit,
		Provider:     provider,
		Scorer:       scorer,
		Sessions:     sessions,
		History:      repo,
		Logger:       log,
	}
	if index != nil {
		srvOpts.Index = index
	}
	if notifier.EmailEnabled() || notifier.AlertsEnabled() {
		srvOpts.Notifier = notifier
	}

	srv, err := server.New(srvOpts)
	if err != nil {
		zapLog.Fatal("server setup failed", zap.Error(err))
	}
	if err := srv.Run(ctx); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		return
	}

	zapLog.Info("Risk server stopped")
}
