package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/evaluation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/storage"
)

// ReportHandler serves evaluation reports produced by the worker.
type ReportHandler struct {
	repo *storage.ReportRepo
}

func NewReportHandler(repo *storage.ReportRepo) *ReportHandler {
	return &ReportHandler{repo: repo}
}

func (h *ReportHandler) Latest(c *gin.Context) {
	report, err := h.repo.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reports generated yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) GetByID(c *gin.Context) {
	report, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	reports, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Render returns the operator-facing plain-text form of a report.
func (h *ReportHandler) Render(c *gin.Context) {
	report, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.String(http.StatusOK, evaluation.Render(report))
}
