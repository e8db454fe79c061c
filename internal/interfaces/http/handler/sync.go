package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	syncapp "github.com/optika/backend/internal/application/sync"
	"github.com/optika/backend/internal/interfaces/http/dto"
)

// SyncTrigger is the scheduler surface the sync handler depends on.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, mode syncapp.Mode) (*syncapp.RunResult, error)
	History(limit int) []*syncapp.RunResult
}

// StatusProvider reports the per-store sync state.
type StatusProvider interface {
	Status(ctx context.Context) ([]syncapp.StoreStatus, error)
	IsRunning() bool
}

// SyncHandler handles sync-related API endpoints
type SyncHandler struct {
	BaseHandler
	trigger SyncTrigger
	status  StatusProvider
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(trigger SyncTrigger, status StatusProvider) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		status:  status,
	}
}

// TriggerSyncRequest selects the run mode for a manual trigger
type TriggerSyncRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=incremental full"`
}

// TriggerSync runs one sync pass and returns the per-store outcome.
// A run already in flight yields 409.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req TriggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	mode := syncapp.Mode(req.Mode)
	if req.Mode == "" {
		mode = syncapp.ModeIncremental
	}

	result, err := h.trigger.TriggerSync(c.Request.Context(), mode)
	if err != nil {
		if errors.Is(err, syncapp.ErrSyncInProgress) {
			h.Conflict(c, dto.ErrCodeSyncInProgress, "A sync run is already in progress")
			return
		}
		h.InternalError(c, "Sync run failed: "+err.Error())
		return
	}

	h.Success(c, result)
}

// SyncStatusResponse is the aggregate sync status view
type SyncStatusResponse struct {
	Running bool                  `json:"running"`
	Stores  []syncapp.StoreStatus `json:"stores"`
}

// GetStatus returns per-store record counts and watermarks.
func (h *SyncHandler) GetStatus(c *gin.Context) {
	stores, err := h.status.Status(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to read sync status: "+err.Error())
		return
	}

	h.Success(c, SyncStatusResponse{
		Running: h.status.IsRunning(),
		Stores:  stores,
	})
}

// GetHistory returns recent completed runs, newest first.
func (h *SyncHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	h.Success(c, h.trigger.History(limit))
}

// RegisterRoutes registers all sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	sync.POST("/run", h.TriggerSync)
	sync.GET("/status", h.GetStatus)
	sync.GET("/history", h.GetHistory)
}
