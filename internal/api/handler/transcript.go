package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/telemetry"
)

// MaxTranscriptsPerRequest bounds one ingest batch.
const MaxTranscriptsPerRequest = 30

// TranscriptHandler ingests externally captured transcripts for offline
// evaluation, alongside the ones the orchestrator produces itself.
type TranscriptHandler struct {
	repo  *storage.TranscriptRepo
	queue *queue.RedisQueue
}

func NewTranscriptHandler(repo *storage.TranscriptRepo, q *queue.RedisQueue) *TranscriptHandler {
	return &TranscriptHandler{repo: repo, queue: q}
}

type IngestRequest struct {
	Transcripts []*domain.Transcript `json:"transcripts"`
}

type IngestResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

func (h *TranscriptHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if len(req.Transcripts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no transcripts provided"})
		return
	}

	if len(req.Transcripts) > MaxTranscriptsPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exceeds maximum batch size of 30"})
		return
	}

	for _, t := range req.Transcripts {
		if t.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}
		if t.SchemaVersion == "" {
			t.SchemaVersion = domain.TranscriptSchemaVersion
		}
	}

	if err := h.repo.CreateBatch(c.Request.Context(), req.Transcripts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store transcripts"})
		return
	}

	if err := h.queue.PublishBatch(c.Request.Context(), req.Transcripts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue transcripts"})
		return
	}

	telemetry.TranscriptsIngested.Add(float64(len(req.Transcripts)))

	ids := make([]string, len(req.Transcripts))
	for i, t := range req.Transcripts {
		ids[i] = t.SessionID
	}

	c.JSON(http.StatusAccepted, IngestResponse{
		Accepted: len(req.Transcripts),
		IDs:      ids,
	})
}

func (h *TranscriptHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve transcript"})
		return
	}

	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
		return
	}

	c.JSON(http.StatusOK, t)
}
