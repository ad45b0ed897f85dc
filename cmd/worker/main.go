package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/evaluation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/telemetry"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	q, err := queue.NewRedisQueue(&cfg.Redis, &cfg.Worker)
	if err != nil {
		log.Fatalf("connect to redis: %v", err)
	}
	defer q.Close()

	w := worker.New(
		q,
		storage.NewTranscriptRepo(db),
		storage.NewReportRepo(db),
		evaluation.NewAnalyzer(&cfg.Guardrail, &cfg.Worker, log),
		cfg.Worker.Concurrency,
		cfg.Worker.BatchSize,
		cfg.Worker.ReportWindow,
		log,
	)

	// Scrape endpoint for the worker process.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		if err := http.ListenAndServe(":9091", mux); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("metrics endpoint stopped")
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down worker")
		cancel()
	}()

	log.Info("worker starting")
	if err := w.Start(ctx); err != nil {
		log.Fatalf("worker error: %v", err)
	}

	log.Info("worker stopped")
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
