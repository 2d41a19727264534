// Package analytics reports per-raffle entry and winner totals.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
)

// RaffleGetter loads raffles.
type RaffleGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)
}

// EntryCounter groups entries per business.
type EntryCounter interface {
	CountByBusiness(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) ([]models.BusinessEntryCount, error)
}

// WinnerCounter counts recorded winners.
type WinnerCounter interface {
	CountByRaffle(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (int, error)
}

// Assignments checks that a business carries a raffle.
type Assignments interface {
	GetActive(ctx context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error)
}

// Stats is the JSON shape for GET /raffles/:id/stats.
type Stats struct {
	RaffleID          uuid.UUID                   `json:"raffle_id"`
	RaffleTitle       string                      `json:"raffle_title"`
	Status            models.RaffleStatus         `json:"status"`
	TotalEntries      int                         `json:"total_entries"`
	MarketingConsents int                         `json:"marketing_consents"`
	Winners           int                         `json:"winners"`
	ByBusiness        []models.BusinessEntryCount `json:"by_business"`
}

// Service aggregates raffle statistics from the entry and winner stores.
type Service struct {
	raffles     RaffleGetter
	entries     EntryCounter
	winners     WinnerCounter
	assignments Assignments
	now         func() time.Time
	logger      *zap.Logger
}

// NewService creates an analytics service.
func NewService(raffles RaffleGetter, entries EntryCounter, winners WinnerCounter, assignments Assignments, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		raffles:     raffles,
		entries:     entries,
		winners:     winners,
		assignments: assignments,
		now:         time.Now,
		logger:      logger,
	}
}

// RaffleStats totals a raffle's entries and winners. A non-nil businessID scopes every count to
// that business and requires an active assignment.
func (s *Service) RaffleStats(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (*Stats, error) {
	raffle, err := s.raffles.GetByID(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if businessID != nil {
		if _, err := s.assignments.GetActive(ctx, *businessID, raffleID); err != nil {
			return nil, err
		}
	}

	counts, err := s.entries.CountByBusiness(ctx, raffleID, businessID)
	if err != nil {
		return nil, err
	}
	winners, err := s.winners.CountByRaffle(ctx, raffleID, businessID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		RaffleID:    raffle.ID,
		RaffleTitle: raffle.Title,
		Status:      raffles.ComputeStatus(raffle, s.now()),
		Winners:     winners,
		ByBusiness:  counts,
	}
	for _, c := range counts {
		stats.TotalEntries += c.Entries
		stats.MarketingConsents += c.MarketingConsent
	}
	return stats, nil
}
