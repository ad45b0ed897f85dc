package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/agent"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/api"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/conversation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/guardrail"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/llm"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/slots"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
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

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
	}

	llmClient, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		log.Fatalf("create llm client: %v", err)
	}

	availability := tools.NewAvailabilityService(time.Now().UnixNano())
	deps := conversation.Deps{
		Registry:  agent.NewRegistry(),
		Responder: agent.NewRunner(llmClient, &cfg.LLM, &cfg.Guardrail, log),
		Pipeline: guardrail.NewPipeline(cfg.Guardrail.FallbackUtterance,
			guardrail.NewScope(cat),
			guardrail.NewHallucination(cat, &cfg.Guardrail),
			guardrail.NewPersona(cat),
			guardrail.NewEscalation(cat, &cfg.Guardrail),
		),
		Catalog:      cat,
		SlotDefs:     slots.Definitions(&cfg.Guardrail, cat),
		Business:     &cfg.Business,
		Guardrails:   &cfg.Guardrail,
		Availability: availability,
		Bookings:     tools.NewBookingService(availability),
		Customers:    tools.NewCustomerService(),
		Log:          log,
	}

	sessions := conversation.NewRegistry(deps)
	router := api.NewRouter(sessions, db, q, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr()).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	log.Info("server stopped")
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
