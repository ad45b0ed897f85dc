package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/api/handler"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/conversation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/telemetry"
)

type Router struct {
	engine *gin.Engine
}

func NewRouter(registry *conversation.Registry, db *storage.PostgresDB, q *queue.RedisQueue, log *logrus.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	transcriptRepo := storage.NewTranscriptRepo(db)
	reportRepo := storage.NewReportRepo(db)

	sessionHandler := handler.NewSessionHandler(registry, transcriptRepo, q, log)
	transcriptHandler := handler.NewTranscriptHandler(transcriptRepo, q)
	reportHandler := handler.NewReportHandler(reportRepo)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "live_sessions": registry.Count()})
	})
	engine.GET("/metrics", gin.WrapH(telemetry.Handler()))

	v1 := engine.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Create)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.POST("/:id/turns", sessionHandler.Turn)
			sessions.POST("/:id/abort", sessionHandler.Abort)
		}

		transcripts := v1.Group("/transcripts")
		{
			transcripts.POST("", transcriptHandler.Ingest)
			transcripts.GET("/:id", transcriptHandler.GetByID)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("", reportHandler.List)
			reports.GET("/latest", reportHandler.Latest)
			reports.GET("/:id", reportHandler.GetByID)
			reports.GET("/:id/render", reportHandler.Render)
		}
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
