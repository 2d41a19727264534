package raffles

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Admin is the service surface used by Handler.
type Admin interface {
	Create(ctx context.Context, actor uuid.UUID, in CreateInput) (*View, error)
	Reassign(ctx context.Context, id uuid.UUID) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*View, error)
	List(ctx context.Context, f ListFilter) ([]View, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*View, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateRequest is the body for POST /raffles.
type CreateRequest struct {
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description"`
	StartDate      time.Time `json:"start_date" binding:"required"`
	EndDate        time.Time `json:"end_date" binding:"required"`
	PrizeImages    []string  `json:"prize_images"`
	MainImageIndex int       `json:"main_image_index"`
	CoverImage     string    `json:"cover_image"`
}

// UpdateRequest is the body for PATCH /raffles/:id.
type UpdateRequest struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
	CoverImage         *string    `json:"cover_image"`
	MainImageIndex     *int       `json:"main_image_index"`
	DeleteImageIndexes []int      `json:"delete_image_indexes"`
	NewImages          []string   `json:"new_images"`
}

// Handler handles raffle HTTP endpoints.
type Handler struct {
	svc    Admin
	logger *zap.Logger
}

// NewHandler creates a raffle handler.
func NewHandler(svc Admin, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts raffle routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	admin := middleware.RequireRole(models.RoleAdmin)
	anyRole := middleware.RequireRole(models.RoleAdmin, models.RoleBusiness, models.RoleRep)

	g.POST("/raffles", admin, h.Create)
	g.GET("/raffles", anyRole, h.List)
	g.GET("/raffles/:id", anyRole, h.Get)
	g.PATCH("/raffles/:id", admin, h.Update)
	g.DELETE("/raffles/:id", admin, h.Delete)
	g.POST("/raffles/:id/assign", admin, h.Reassign)
}

// Create handles POST /raffles (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		PrizeImages:    req.PrizeImages,
		MainImageIndex: req.MainImageIndex,
		CoverImage:     req.CoverImage,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, v)
}

// List handles GET /raffles. Query ?status=scheduled|active|ended, ?archived=1.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{IncludeArchived: c.Query("archived") == "1"}
	switch s := models.RaffleStatus(c.Query("status")); s {
	case "", models.RaffleStatusScheduled, models.RaffleStatusActive, models.RaffleStatusEnded:
		f.Status = s
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /raffles/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, v)
}

// Update handles PATCH /raffles/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.Update(c.Request.Context(), id, UpdateInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /raffles/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// Reassign handles POST /raffles/:id/assign (admin only).
func (h *Handler) Reassign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	n, err := h.svc.Reassign(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"raffle_id": id, "assigned": n})
}
