package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// StatsReader is the read side the handler needs.
type StatsReader interface {
	RaffleStats(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (*Stats, error)
}

// Handler handles GET /raffles/:id/stats.
type Handler struct {
	stats  StatsReader
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(stats StatsReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{stats: stats, logger: logger}
}

// RegisterRoutes mounts the stats route on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/raffles/:id/stats", middleware.RequireRole(models.RoleAdmin, models.RoleBusiness), h.RaffleStats)
}

// RaffleStats handles GET /raffles/:id/stats. Businesses only see their own share.
func (h *Handler) RaffleStats(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	var scope *uuid.UUID
	if middleware.UserRole(c) == models.RoleBusiness {
		own := middleware.UserID(c)
		scope = &own
	}
	stats, err := h.stats.RaffleStats(c.Request.Context(), raffleID, scope)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stats)
}
