package auth

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/utils"
)

const tempPasswordLength = 16

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Store is the user persistence used by Service.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role models.Role) ([]models.UserPublic, error)
	Create(ctx context.Context, u *models.User) error
}

// RaffleAssigner gives a new business its assignments.
type RaffleAssigner interface {
	AssignRafflesToBusiness(ctx context.Context, businessID uuid.UUID) (int, error)
}

// Welcomer sends a provisioned business its login details.
type Welcomer interface {
	BusinessWelcome(ctx context.Context, user *models.User, tempPassword string) error
}

// CreateUserInput is an administrator-created account.
type CreateUserInput struct {
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	FullName    string      `json:"full_name"`
	Role        models.Role `json:"role"`
	CompanyName string      `json:"company_name"`
}

// ProvisionInput is the customer a completed payment belongs to.
type ProvisionInput struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
}

// ProvisionResult reports what provisioning did.
type ProvisionResult struct {
	User     models.UserPublic `json:"user"`
	Created  bool              `json:"created"`
	Assigned int               `json:"assigned"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Service implements login and account management.
type Service struct {
	store    Store
	jwt      *JWTService
	assigner RaffleAssigner
	welcomer Welcomer
	logger   *zap.Logger
}

// NewService creates an auth service. welcomer may be nil.
func NewService(store Store, jwt *JWTService, assigner RaffleAssigner, welcomer Welcomer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, jwt: jwt, assigner: assigner, welcomer: welcomer, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*TokenResponse, error) {
	token, err := s.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, User: user.ToPublic()}, nil
}

// List returns users, optionally filtered by role.
func (s *Service) List(ctx context.Context, role models.Role) ([]models.UserPublic, error) {
	if role != "" && !role.Valid() {
		return nil, apperror.Field("role", "must be admin, business or rep")
	}
	return s.store.List(ctx, role)
}

// CreateUser creates an account. New businesses receive every live raffle.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Role, validation.Required, validation.In(models.RoleAdmin, models.RoleBusiness, models.RoleRep)),
	)
	if err != nil {
		return nil, apperror.FromValidation(err)
	}
	if in.Role == models.RoleBusiness && in.CompanyName == "" {
		return nil, apperror.Field("company_name", "cannot be blank")
	}

	user, err := s.create(ctx, in.Email, in.Password, in.FullName, in.Role, in.CompanyName)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleBusiness {
		if _, err := s.assign(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) create(ctx context.Context, email, password, fullName string, role models.Role, company string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: email, Password: hash, FullName: fullName, Role: role, CompanyName: company}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

func (s *Service) assign(ctx context.Context, user *models.User) (int, error) {
	n, err := s.assigner.AssignRafflesToBusiness(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("business raffles assigned", zap.String("business_id", user.ID.String()), zap.Int("assigned", n))
	return n, nil
}

// ProvisionBusiness creates the business account for a completed payment and assigns it every
// live raffle. Replays for an existing business only backfill assignments.
func (s *Service) ProvisionBusiness(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.CompanyName, validation.Required, validation.Length(1, 200)),
	)
	if err != nil {
		return nil, apperror.FromValidation(err)
	}
	if in.FullName == "" {
		in.FullName = in.CompanyName
	}

	user, err := s.store.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if user.Role != models.RoleBusiness {
			return nil, apperror.ErrEmailTaken
		}
		n, err := s.assign(ctx, user)
		if err != nil {
			return nil, err
		}
		return &ProvisionResult{User: user.ToPublic(), Assigned: n}, nil
	case !errors.Is(err, apperror.ErrUserNotFound):
		return nil, err
	}

	temp, err := gonanoid.New(tempPasswordLength)
	if err != nil {
		return nil, err
	}
	user, err = s.create(ctx, in.Email, temp, in.FullName, models.RoleBusiness, in.CompanyName)
	if err != nil {
		return nil, err
	}
	n, err := s.assign(ctx, user)
	if err != nil {
		return nil, err
	}
	if s.welcomer != nil {
		if err := s.welcomer.BusinessWelcome(ctx, user, temp); err != nil {
			s.logger.Warn("welcome email not queued", zap.String("business_id", user.ID.String()), zap.Error(err))
		}
	}
	return &ProvisionResult{User: user.ToPublic(), Created: true, Assigned: n}, nil
}
