package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Lister reads email logs.
type Lister interface {
	ListByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes mounts email log routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/raffles/:id/emails", middleware.RequireRole(models.RoleAdmin), h.ListByRaffle)
}

// ListByRaffle handles GET /raffles/:id/emails (admin only).
func (h *Handler) ListByRaffle(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	logs, err := h.repo.ListByRaffle(c.Request.Context(), raffleID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, logs)
}
