package entries

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

const (
	defaultListLimit = 500
	maxListLimit     = 5000
)

// SubmitRequest is the body for POST /enter/...
type SubmitRequest struct {
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	Answers          map[string]string `json:"answers"`
	AgreedToTerms    bool              `json:"agreed_to_terms"`
	MarketingConsent bool              `json:"marketing_consent"`
}

func (r SubmitRequest) input(ip string) SubmitInput {
	return SubmitInput{
		Entrant: Entrant{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
			Phone:     r.Phone,
		},
		Answers:          r.Answers,
		AgreedToTerms:    r.AgreedToTerms,
		MarketingConsent: r.MarketingConsent,
		IP:               ip,
	}
}

// Handler handles entry HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an entry handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublicRoutes mounts the unauthenticated entry form endpoints.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes) {
	r.POST("/enter/:businessId/:raffleId", h.Submit)
	r.POST("/enter/code/:shareCode", h.SubmitByShareCode)
}

// RegisterRoutes mounts dashboard routes on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/raffles/:id/entries", middleware.RequireRole(models.RoleAdmin), h.ListByRaffle)
	g.GET("/business/entries", middleware.RequireRole(models.RoleBusiness), h.ListForBusiness)
	g.GET("/entries/export.csv", middleware.RequireRole(models.RoleAdmin, models.RoleBusiness), h.Export)
}

// Submit handles POST /enter/:businessId/:raffleId (public).
func (h *Handler) Submit(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("businessId"))
	if err != nil {
		response.BadRequest(c, "invalid business id")
		return
	}
	raffleID, err := uuid.Parse(c.Param("raffleId"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := req.input(c.ClientIP())
	in.BusinessID = businessID
	in.RaffleID = raffleID
	res, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, res)
}

// SubmitByShareCode handles POST /enter/code/:shareCode (public).
func (h *Handler) SubmitByShareCode(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.SubmitByShareCode(c.Request.Context(), c.Param("shareCode"), req.input(c.ClientIP()))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, res)
}

func pageParams(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultListLimit, 0
	var err error
	if s := c.Query("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			return 0, 0, false
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}
	if s := c.Query("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func optionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	s := c.Query(key)
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// ListByRaffle handles GET /raffles/:id/entries (admin only).
func (h *Handler) ListByRaffle(c *gin.Context) {
	raffleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid raffle id")
		return
	}
	limit, offset, ok := pageParams(c)
	if !ok {
		response.BadRequest(c, "invalid pagination")
		return
	}
	list, err := h.svc.List(c.Request.Context(), Filter{RaffleID: &raffleID, Limit: limit, Offset: offset})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// ListForBusiness handles GET /business/entries?raffle_id= (business only).
func (h *Handler) ListForBusiness(c *gin.Context) {
	raffleID, ok := optionalUUID(c, "raffle_id")
	if !ok {
		response.BadRequest(c, "invalid raffle_id")
		return
	}
	limit, offset, ok := pageParams(c)
	if !ok {
		response.BadRequest(c, "invalid pagination")
		return
	}
	businessID := middleware.UserID(c)
	list, err := h.svc.List(c.Request.Context(), Filter{RaffleID: raffleID, BusinessID: &businessID, Limit: limit, Offset: offset})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Export handles GET /entries/export.csv?raffle_id=&business_id=. Businesses only export their own entries.
func (h *Handler) Export(c *gin.Context) {
	raffleID, ok := optionalUUID(c, "raffle_id")
	if !ok {
		response.BadRequest(c, "invalid raffle_id")
		return
	}
	businessID, ok := optionalUUID(c, "business_id")
	if !ok {
		response.BadRequest(c, "invalid business_id")
		return
	}
	if middleware.UserRole(c) == models.RoleBusiness {
		own := middleware.UserID(c)
		businessID = &own
	}

	var buf bytes.Buffer
	n, err := h.svc.ExportCSV(c.Request.Context(), Filter{RaffleID: raffleID, BusinessID: businessID}, &buf)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("entries exported", zap.Int("rows", n), zap.String("user_id", middleware.UserID(c).String()))
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename(time.Now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
