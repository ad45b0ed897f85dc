package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/conversation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/telemetry"
)

// SessionHandler exposes the live conversation surface. Each session is a
// phone call in progress; terminated sessions are finalized into a
// transcript, persisted, and handed to the evaluation stream.
type SessionHandler struct {
	registry *conversation.Registry
	repo     *storage.TranscriptRepo
	queue    *queue.RedisQueue
	log      *logrus.Logger
}

func NewSessionHandler(registry *conversation.Registry, repo *storage.TranscriptRepo, q *queue.RedisQueue, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, repo: repo, queue: q, log: log}
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	s := h.registry.Create()
	telemetry.SessionsStarted.Inc()

	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: s.ID,
		State:     string(s.State()),
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"state":      string(s.State()),
		"terminated": s.Terminated(),
	})
}

type TurnRequest struct {
	CallerText string `json:"caller_text"`
}

type TurnResponse struct {
	Reply      string `json:"reply"`
	State      string `json:"state"`
	TurnIndex  int    `json:"turn_index"`
	Terminated bool   `json:"terminated"`
}

func (h *SessionHandler) Turn(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.CallerText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller_text is required"})
		return
	}

	started := time.Now()
	out, err := s.ProcessTurn(c.Request.Context(), req.CallerText)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionTerminated):
			c.JSON(http.StatusConflict, gin.H{"error": "session already terminated"})
		case errors.Is(err, domain.ErrTurnInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "previous turn still in progress"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "turn processing failed"})
		}
		return
	}

	telemetry.TurnDuration.Observe(time.Since(started).Seconds())
	telemetry.TurnsProcessed.WithLabelValues(string(out.Turn.AgentRole), strconv.FormatBool(out.Turn.Failed)).Inc()
	for _, v := range out.Turn.Verdicts {
		telemetry.GuardrailVerdicts.WithLabelValues(v.Guardrail, string(v.Decision)).Inc()
	}
	if out.Turn.Event == domain.EventEscalationForced {
		telemetry.Escalations.WithLabelValues("guardrail").Inc()
	}

	terminated := s.Terminated()
	if terminated {
		h.finalize(c, s.ID)
	}

	c.JSON(http.StatusOK, TurnResponse{
		Reply:      out.Reply,
		State:      string(out.State),
		TurnIndex:  out.Turn.Index,
		Terminated: terminated,
	})
}

type AbortRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionHandler) Abort(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req AbortRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "caller hung up"
	}

	s.Abort(req.Reason)
	transcript := h.finalize(c, s.ID)
	if transcript == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": transcript.SessionID,
		"outcome":    transcript.Outcome,
		"turns":      len(transcript.Turns),
	})
}

// finalize freezes the session, persists its transcript, and publishes it
// for evaluation. Persistence failures are logged but never shown to the
// caller: the call itself already ended.
func (h *SessionHandler) finalize(c *gin.Context, sessionID string) *domain.Transcript {
	s, err := h.registry.Remove(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil
	}

	transcript := s.Finalize()
	telemetry.SessionsCompleted.WithLabelValues(string(transcript.Outcome)).Inc()

	ctx := c.Request.Context()
	if h.repo != nil {
		if err := h.repo.Create(ctx, transcript); err != nil {
			h.log.WithError(err).WithField("session_id", sessionID).Error("store transcript failed")
		}
	}
	if h.queue != nil {
		if err := h.queue.Publish(ctx, transcript); err != nil {
			h.log.WithError(err).WithField("session_id", sessionID).Error("publish transcript failed")
		}
	}
	return transcript
}
