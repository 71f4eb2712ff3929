package analysis

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trustcheck-backend/internal/shared/server/middleware"
	"trustcheck-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses/:id", h.getAnalysis)
}

type startAnalysisRequest struct {
	Script        string `json:"script"`
	UploadDate    string `json:"uploadDate"`
	ChannelName   string `json:"channelName"`
	ChannelHandle string `json:"channelHandle"`
	ChannelID     string `json:"channelId"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	var details []map[string]string
	if strings.TrimSpace(req.Script) == "" {
		details = append(details, map[string]string{"field": "script", "issue": "required"})
	}
	if strings.TrimSpace(req.ChannelName) == "" {
		details = append(details, map[string]string{"field": "channelName", "issue": "required"})
	}
	uploadDate, err := time.Parse("2006-01-02", strings.TrimSpace(req.UploadDate))
	if err != nil {
		details = append(details, map[string]string{"field": "uploadDate", "issue": "must be YYYY-MM-DD"})
	}
	if len(details) > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid analysis request", details)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Submit(ctx, SubmitInput{
		Script:        req.Script,
		UploadDate:    uploadDate,
		ChannelName:   req.ChannelName,
		ChannelHandle: req.ChannelHandle,
		ChannelID:     req.ChannelID,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		return
	}

	c.Set("jobId", job.ID)
	respond.Accepted(c, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	c.Set("jobId", jobID)

	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"jobId":     job.ID,
		"status":    job.Status,
		"step":      job.Step,
		"progress":  job.Progress,
		"createdAt": job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Status == StatusCompleted && job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Status == StatusError && job.ErrorMessage != nil {
		resp["error"] = *job.ErrorMessage
	}

	respond.JSON(c, http.StatusOK, resp)
}
