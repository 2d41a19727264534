package businessraffles

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Handler handles business raffle HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a business raffle handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts business routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	biz := g.Group("/business/raffles", middleware.RequireRole(models.RoleBusiness))
	biz.GET("", h.List)
	biz.GET("/:id", h.Get)
	biz.PUT("/:id/customization", h.UpdateCustomization)
	biz.GET("/:id/qrcode", h.QRCode)

	g.POST("/raffles/:id/businesses/:businessId", middleware.RequireRole(models.RoleAdmin), h.Assign)
}

// RegisterPublicRoutes mounts the unauthenticated entry page lookup.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/enter/code/:shareCode", h.EntryPage)
}

// Assign handles POST /raffles/:id/businesses/:businessId (admin only).
func (h *Handler) Assign(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	businessID, err := uuid.Parse(c.Param("businessId"))
	if err != nil {
		response.BadRequest(c, "invalid business id")
		return
	}
	br, err := h.svc.AssignBusiness(c.Request.Context(), raffleID, businessID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, br)
}

// List handles GET /business/raffles.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.UserID(c), c.Query("archived") == "1")
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /business/raffles/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	v, err := h.svc.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, v)
}

// UpdateCustomization handles PUT /business/raffles/:id/customization.
func (h *Handler) UpdateCustomization(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	var req models.Customization
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	br, err := h.svc.UpdateCustomization(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, br)
}

// QRCode handles GET /business/raffles/:id/qrcode?size=256 and returns a PNG.
func (h *Handler) QRCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	size := 0
	if s := c.Query("size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil {
			response.BadRequest(c, "invalid size")
			return
		}
	}
	png, err := h.svc.QRCode(c.Request.Context(), middleware.UserID(c), id, size)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// EntryPage handles GET /enter/code/:shareCode (public).
func (h *Handler) EntryPage(c *gin.Context) {
	page, err := h.svc.EntryPage(c.Request.Context(), c.Param("shareCode"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, page)
}
