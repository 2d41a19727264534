package scheduler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Jobs is the scheduler surface exposed to the cron caller.
type Jobs interface {
	UpdateRaffleStatuses(ctx context.Context) (*StatusUpdateResult, error)
	CleanupExpiredData(ctx context.Context) (*CleanupResult, error)
}

// Handler exposes scheduler runs to an external cron.
type Handler struct {
	jobs   Jobs
	secret string
	logger *zap.Logger
}

// NewHandler creates a cron handler guarded by secret.
func NewHandler(jobs Jobs, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobs: jobs, secret: secret, logger: logger}
}

// RegisterRoutes mounts /cron routes. Callers authenticate with the X-Cron-Secret header.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/cron", middleware.RequireSecret(middleware.HeaderCronSecret, h.secret))
	g.POST("/raffle-status", h.RaffleStatus)
	g.POST("/cleanup", h.Cleanup)
}

// RaffleStatus handles POST /cron/raffle-status.
func (h *Handler) RaffleStatus(c *gin.Context) {
	res, err := h.jobs.UpdateRaffleStatuses(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// Cleanup handles POST /cron/cleanup.
func (h *Handler) Cleanup(c *gin.Context) {
	res, err := h.jobs.CleanupExpiredData(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}
