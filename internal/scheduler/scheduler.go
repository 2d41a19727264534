// Package scheduler advances raffles through their lifecycle: activation, ending, the automatic
// winner draw and archival.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/winners"
)

// ArchiveAfter is how long an ended raffle stays live before it is archived.
const ArchiveAfter = 30 * 24 * time.Hour

// RaffleStore is the raffle bookkeeping the scheduler drives.
type RaffleStore interface {
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
	EndDue(ctx context.Context, now time.Time) (int64, error)
	ArchiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WinnerSelector runs the batch draw.
type WinnerSelector interface {
	SelectWinnersForEndedRaffles(ctx context.Context) ([]winners.SelectionResult, []winners.Skipped, error)
}

// StatusUpdateResult summarizes one UpdateRaffleStatuses run.
type StatusUpdateResult struct {
	Activated       int64                     `json:"activated"`
	Ended           int64                     `json:"ended"`
	WinnersSelected int                       `json:"winners_selected"`
	Winners         []winners.SelectionResult `json:"winners"`
	Skipped         []winners.Skipped         `json:"skipped"`
}

// CleanupResult summarizes one CleanupExpiredData run.
type CleanupResult struct {
	ArchivedRaffles int64 `json:"archived_raffles"`
}

// Scheduler runs lifecycle transitions. Runs are sequential.
type Scheduler struct {
	raffles         RaffleStore
	winners         WinnerSelector
	cleanupInterval time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

// NewScheduler creates a scheduler. cleanupInterval spaces CleanupExpiredData calls made by Run.
func NewScheduler(raffles RaffleStore, selector WinnerSelector, cleanupInterval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		raffles:         raffles,
		winners:         selector,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		logger:          logger,
	}
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// UpdateRaffleStatuses activates opened raffles, ends closed ones and draws the automatic
// winners. Storage errors abort the run; a raffle whose draw fails is skipped.
func (s *Scheduler) UpdateRaffleStatuses(ctx context.Context) (*StatusUpdateResult, error) {
	now := s.now()
	activated, err := s.raffles.ActivateDue(ctx, now)
	if err != nil {
		return nil, err
	}
	ended, err := s.raffles.EndDue(ctx, now)
	if err != nil {
		return nil, err
	}
	selected, skipped, err := s.winners.SelectWinnersForEndedRaffles(ctx)
	if err != nil {
		return nil, fmt.Errorf("select winners for ended raffles: %w", err)
	}
	if selected == nil {
		selected = []winners.SelectionResult{}
	}
	if skipped == nil {
		skipped = []winners.Skipped{}
	}

	res := &StatusUpdateResult{
		Activated:       activated,
		Ended:           ended,
		WinnersSelected: len(selected),
		Winners:         selected,
		Skipped:         skipped,
	}
	s.logger.Info("raffle statuses updated",
		zap.Int64("activated", activated),
		zap.Int64("ended", ended),
		zap.Int("winners_selected", res.WinnersSelected),
		zap.Int("skipped", len(skipped)),
	)
	return res, nil
}

// CleanupExpiredData archives raffles that ended more than ArchiveAfter ago.
// Entries and winners are never deleted.
func (s *Scheduler) CleanupExpiredData(ctx context.Context) (*CleanupResult, error) {
	n, err := s.raffles.ArchiveEndedBefore(ctx, s.now().Add(-ArchiveAfter))
	if err != nil {
		return nil, err
	}
	s.logger.Info("expired raffles archived", zap.Int64("archived", n))
	return &CleanupResult{ArchivedRaffles: n}, nil
}

// Run updates statuses every interval until ctx is done, and cleans up once per cleanup interval.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastCleanup time.Time

	tick := func() {
		if _, err := s.UpdateRaffleStatuses(ctx); err != nil {
			s.logger.Error("raffle status update failed", zap.Error(err))
		}
		if s.cleanupInterval > 0 && s.now().Sub(lastCleanup) >= s.cleanupInterval {
			if _, err := s.CleanupExpiredData(ctx); err != nil {
				s.logger.Error("raffle cleanup failed", zap.Error(err))
				return
			}
			lastCleanup = s.now()
		}
	}

	s.logger.Info("scheduler started", zap.Duration("interval", interval), zap.Duration("cleanup_interval", s.cleanupInterval))
	tick()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			tick()
		}
	}
}
