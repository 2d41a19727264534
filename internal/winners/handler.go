package winners

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Selector performs administrator draws and re-sends winner emails.
type Selector interface {
	SelectWinner(ctx context.Context, actor uuid.UUID, raffleID uuid.UUID, opts SelectOptions) (*SelectionResult, error)
	ResendNotifications(ctx context.Context, raffleID uuid.UUID) (int, error)
}

// Lister reads recorded winners.
type Lister interface {
	ListByRaffle(ctx context.Context, raffleID uuid.UUID) ([]models.Winner, error)
	ListForBusiness(ctx context.Context, businessID uuid.UUID) ([]models.Winner, error)
}

// SelectRequest is the body for POST /raffles/:id/winners.
type SelectRequest struct {
	SelectionMethod  models.SelectionMethod `json:"selection_method" binding:"required"`
	EntryID          *uuid.UUID             `json:"entry_id"`
	PrizeDescription string                 `json:"prize_description"`
	Notes            string                 `json:"notes"`
}

// Handler handles winner HTTP endpoints.
type Handler struct {
	selector Selector
	lister   Lister
	logger   *zap.Logger
}

// NewHandler creates a winner handler.
func NewHandler(selector Selector, lister Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{selector: selector, lister: lister, logger: logger}
}

// RegisterRoutes mounts winner routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/raffles/:id/winners", middleware.RequireRole(models.RoleAdmin), h.Select)
	g.GET("/raffles/:id/winners", middleware.RequireRole(models.RoleAdmin, models.RoleBusiness), h.ListByRaffle)
	g.POST("/raffles/:id/winners/notify", middleware.RequireRole(models.RoleAdmin), h.Resend)
	g.GET("/business/winners", middleware.RequireRole(models.RoleBusiness), h.ListForBusiness)
}

// Select handles POST /raffles/:id/winners (admin only).
func (h *Handler) Select(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	opts := SelectOptions{
		Method:           req.SelectionMethod,
		PrizeDescription: req.PrizeDescription,
		Notes:            req.Notes,
	}
	if req.EntryID != nil {
		opts.EntryID = *req.EntryID
	}
	res, err := h.selector.SelectWinner(c.Request.Context(), middleware.UserID(c), raffleID, opts)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, res)
}

// Resend handles POST /raffles/:id/winners/notify (admin only).
func (h *Handler) Resend(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	queued, err := h.selector.ResendNotifications(c.Request.Context(), raffleID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"queued": queued})
}

// ListByRaffle handles GET /raffles/:id/winners. Businesses only see winners from their own entries.
func (h *Handler) ListByRaffle(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	list, err := h.lister.ListByRaffle(c.Request.Context(), raffleID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if middleware.UserRole(c) == models.RoleBusiness {
		own := middleware.UserID(c)
		filtered := make([]models.Winner, 0, len(list))
		for _, w := range list {
			if w.BusinessID == own {
				filtered = append(filtered, w)
			}
		}
		list = filtered
	}
	response.OK(c, list)
}

// ListForBusiness handles GET /business/winners (business only).
func (h *Handler) ListForBusiness(c *gin.Context) {
	list, err := h.lister.ListForBusiness(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
