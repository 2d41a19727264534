package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// Accounts is the service surface used by Handler.
type Accounts interface {
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	List(ctx context.Context, role models.Role) ([]models.UserPublic, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error)
	ProvisionBusiness(ctx context.Context, in ProvisionInput) (*ProvisionResult, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Handler handles auth HTTP endpoints. Routes are mounted by the server with the guards each needs.
type Handler struct {
	svc    Accounts
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc Accounts, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, ErrInvalidCredentials.Error())
			return
		}
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// List handles GET /users?role= (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// CreateUser handles POST /users (admin only).
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, user.ToPublic())
}

// PaymentCompleted handles POST /webhooks/payment-completed (shared-secret guarded).
func (h *Handler) PaymentCompleted(c *gin.Context) {
	var req ProvisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.ProvisionBusiness(c.Request.Context(), req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if res.Created {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}
