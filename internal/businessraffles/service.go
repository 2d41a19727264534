package businessraffles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

const (
	shareCodeAlphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	shareCodeLength   = 10
	questionIDLength  = 8

	DefaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024

	shareCodeAttempts = 3
)

var errShareCodeTaken = errors.New("share code already in use")

// Store is the assignment persistence used by Service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessRaffle, error)
	GetActive(ctx context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error)
	GetByShareCode(ctx context.Context, code string) (*models.BusinessRaffle, error)
	BusinessesWithoutAssignment(ctx context.Context, raffleID uuid.UUID) ([]uuid.UUID, error)
	RafflesWithoutAssignment(ctx context.Context, businessID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	Insert(ctx context.Context, br *models.BusinessRaffle) error
	InsertMany(ctx context.Context, rows []models.BusinessRaffle) (int, error)
	ListForBusiness(ctx context.Context, businessID uuid.UUID, includeArchived bool) ([]Listing, error)
	UpdateCustomization(ctx context.Context, id uuid.UUID, c models.Customization) (*models.BusinessRaffle, error)
	BusinessName(ctx context.Context, businessID uuid.UUID) (string, error)
}

// RaffleGetter loads raffles.
type RaffleGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)
}

// Listing is an assignment joined with its raffle.
type Listing struct {
	Assignment models.BusinessRaffle `json:"assignment"`
	Raffle     models.Raffle         `json:"-"`
}

// ListingView is what a business sees on its dashboard.
type ListingView struct {
	Assignment models.BusinessRaffle `json:"assignment"`
	Raffle     raffles.View          `json:"raffle"`
	EntryURL   string                `json:"entry_url"`
}

// EntryPage is the public data needed to render a business's entry form.
type EntryPage struct {
	AssignmentID  uuid.UUID            `json:"assignment_id"`
	BusinessID    uuid.UUID            `json:"business_id"`
	BusinessName  string               `json:"business_name"`
	ShareCode     string               `json:"share_code"`
	Raffle        raffles.View         `json:"raffle"`
	Customization models.Customization `json:"customization"`
}

// Service implements the business assignment layer.
type Service struct {
	store         Store
	raffles       RaffleGetter
	publicBaseURL string
	now           func() time.Time
	newCode       func() (string, error)
	newQuestionID func() (string, error)
	logger        *zap.Logger
}

// NewService creates an assignment service. publicBaseURL prefixes entry page links.
func NewService(store Store, raffleGetter RaffleGetter, publicBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		raffles:       raffleGetter,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
		newCode: func() (string, error) {
			return gonanoid.Generate(shareCodeAlphabet, shareCodeLength)
		},
		newQuestionID: func() (string, error) {
			return gonanoid.Generate(shareCodeAlphabet, questionIDLength)
		},
		logger: logger,
	}
}

// EntryURL is the public entry page of a share code.
func (s *Service) EntryURL(shareCode string) string {
	return s.publicBaseURL + "/enter/" + shareCode
}

func (s *Service) buildRows(pairs [][2]uuid.UUID) ([]models.BusinessRaffle, error) {
	rows := make([]models.BusinessRaffle, 0, len(pairs))
	for _, p := range pairs {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate share code: %w", err)
		}
		rows = append(rows, models.BusinessRaffle{
			BusinessID:    p[0],
			RaffleID:      p[1],
			IsActive:      true,
			ShareCode:     code,
			Customization: models.Customization{},
		})
	}
	return rows, nil
}

// AssignToAllBusinesses gives every business account an assignment of raffleID.
// Businesses already assigned are skipped. Returns the number of new assignments.
func (s *Service) AssignToAllBusinesses(ctx context.Context, raffleID uuid.UUID) (int, error) {
	businesses, err := s.store.BusinessesWithoutAssignment(ctx, raffleID)
	if err != nil {
		return 0, err
	}
	pairs := make([][2]uuid.UUID, 0, len(businesses))
	for _, b := range businesses {
		pairs = append(pairs, [2]uuid.UUID{b, raffleID})
	}
	rows, err := s.buildRows(pairs)
	if err != nil {
		return 0, err
	}
	n, err := s.store.InsertMany(ctx, rows)
	if err != nil {
		return n, err
	}
	s.logger.Info("raffle assigned to businesses", zap.String("raffle_id", raffleID.String()), zap.Int("count", n))
	return n, nil
}

// AssignRafflesToBusiness gives a new business every raffle that has not ended.
func (s *Service) AssignRafflesToBusiness(ctx context.Context, businessID uuid.UUID) (int, error) {
	ids, err := s.store.RafflesWithoutAssignment(ctx, businessID, s.now())
	if err != nil {
		return 0, err
	}
	pairs := make([][2]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]uuid.UUID{businessID, id})
	}
	rows, err := s.buildRows(pairs)
	if err != nil {
		return 0, err
	}
	n, err := s.store.InsertMany(ctx, rows)
	if err != nil {
		return n, err
	}
	s.logger.Info("raffles assigned to business", zap.String("business_id", businessID.String()), zap.Int("count", n))
	return n, nil
}

// AssignBusiness links one business to one raffle.
func (s *Service) AssignBusiness(ctx context.Context, raffleID, businessID uuid.UUID) (*models.BusinessRaffle, error) {
	if _, err := s.raffles.GetByID(ctx, raffleID); err != nil {
		return nil, err
	}
	if _, err := s.store.BusinessName(ctx, businessID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetActive(ctx, businessID, raffleID); err == nil {
		return nil, apperror.ErrAssignmentAlreadyExists
	} else if !errors.Is(err, apperror.ErrAssignmentNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		rows, err := s.buildRows([][2]uuid.UUID{{businessID, raffleID}})
		if err != nil {
			return nil, err
		}
		br := &rows[0]
		err = s.store.Insert(ctx, br)
		if errors.Is(err, errShareCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("raffle assigned to business",
			zap.String("raffle_id", raffleID.String()),
			zap.String("business_id", businessID.String()),
		)
		return br, nil
	}
	return nil, fmt.Errorf("assign raffle %s: %w", raffleID, errShareCodeTaken)
}

// GetActive returns the active assignment of raffleID to businessID.
func (s *Service) GetActive(ctx context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error) {
	return s.store.GetActive(ctx, businessID, raffleID)
}

// GetByShareCode returns the active assignment behind a share code.
func (s *Service) GetByShareCode(ctx context.Context, code string) (*models.BusinessRaffle, error) {
	return s.store.GetByShareCode(ctx, code)
}

// owned loads an assignment and checks it belongs to businessID.
func (s *Service) owned(ctx context.Context, businessID, assignmentID uuid.UUID) (*models.BusinessRaffle, error) {
	br, err := s.store.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if br.BusinessID != businessID || !br.IsActive {
		return nil, apperror.ErrAssignmentNotFound
	}
	return br, nil
}

// List returns a business's assignments with raffle status and entry links.
func (s *Service) List(ctx context.Context, businessID uuid.UUID, includeArchived bool) ([]ListingView, error) {
	list, err := s.store.ListForBusiness(ctx, businessID, includeArchived)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ListingView, 0, len(list))
	for i := range list {
		out = append(out, ListingView{
			Assignment: list[i].Assignment,
			Raffle:     raffles.NewView(&list[i].Raffle, now),
			EntryURL:   s.EntryURL(list[i].Assignment.ShareCode),
		})
	}
	return out, nil
}

// Get returns one of a business's assignments with its raffle.
func (s *Service) Get(ctx context.Context, businessID, assignmentID uuid.UUID) (*ListingView, error) {
	br, err := s.owned(ctx, businessID, assignmentID)
	if err != nil {
		return nil, err
	}
	raffle, err := s.raffles.GetByID(ctx, br.RaffleID)
	if err != nil {
		return nil, err
	}
	return &ListingView{
		Assignment: *br,
		Raffle:     raffles.NewView(raffle, s.now()),
		EntryURL:   s.EntryURL(br.ShareCode),
	}, nil
}

// UpdateCustomization validates and replaces a business's customization of one raffle.
func (s *Service) UpdateCustomization(ctx context.Context, businessID, assignmentID uuid.UUID, c models.Customization) (*models.BusinessRaffle, error) {
	if _, err := s.owned(ctx, businessID, assignmentID); err != nil {
		return nil, err
	}
	normalized, err := normalizeCustomization(c, s.newQuestionID)
	if err != nil {
		return nil, err
	}
	br, err := s.store.UpdateCustomization(ctx, assignmentID, normalized)
	if err != nil {
		return nil, err
	}
	s.logger.Info("customization updated",
		zap.String("business_id", businessID.String()),
		zap.String("raffle_id", br.RaffleID.String()),
		zap.Int("questions", len(normalized.CustomQuestions)),
	)
	return br, nil
}

// EntryPage resolves a share code into the public entry form data.
func (s *Service) EntryPage(ctx context.Context, code string) (*EntryPage, error) {
	br, err := s.store.GetByShareCode(ctx, code)
	if err != nil {
		return nil, err
	}
	raffle, err := s.raffles.GetByID(ctx, br.RaffleID)
	if err != nil {
		return nil, err
	}
	name, err := s.store.BusinessName(ctx, br.BusinessID)
	if err != nil {
		return nil, err
	}
	return &EntryPage{
		AssignmentID:  br.ID,
		BusinessID:    br.BusinessID,
		BusinessName:  name,
		ShareCode:     br.ShareCode,
		Raffle:        raffles.NewView(raffle, s.now()),
		Customization: br.Customization,
	}, nil
}

// QRCode renders a PNG QR code of the assignment's entry page. size is clamped to a sane range.
func (s *Service) QRCode(ctx context.Context, businessID, assignmentID uuid.UUID, size int) ([]byte, error) {
	br, err := s.owned(ctx, businessID, assignmentID)
	if err != nil {
		return nil, err
	}
	switch {
	case size == 0:
		size = DefaultQRSize
	case size < minQRSize:
		size = minQRSize
	case size > maxQRSize:
		size = maxQRSize
	}
	png, err := qrcode.Encode(s.EntryURL(br.ShareCode), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
