// Package winners draws raffle winners: uniformly at random from eligible entries, without
// replacement, at most once automatically per raffle.
package winners

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/redis"
)

const drawLockTTL = 30 * time.Second

// Store is the winner persistence used by Engine.
type Store interface {
	Create(ctx context.Context, w *models.Winner) error
	ListByRaffle(ctx context.Context, raffleID uuid.UUID) ([]models.Winner, error)
	HasAutomaticWinner(ctx context.Context, raffleID uuid.UUID) (bool, error)
}

// EntrySource reads the entries a draw picks from.
type EntrySource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error)
	ListEligible(ctx context.Context, raffleID uuid.UUID) ([]models.Entry, error)
}

// RaffleSource reads raffles.
type RaffleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)
	ListAwaitingDraw(ctx context.Context, now time.Time) ([]models.Raffle, error)
}

// Locker serializes draws on one raffle.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Notifier sends the winner email.
type Notifier interface {
	WinnerSelected(ctx context.Context, in notify.WinnerNotice) error
}

// Publisher pushes dashboard events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// SelectOptions configures an administrator's selection.
type SelectOptions struct {
	Method           models.SelectionMethod
	EntryID          uuid.UUID // manual only
	PrizeDescription string
	Notes            string
}

// SelectionResult is one successful draw.
type SelectionResult struct {
	RaffleID    uuid.UUID      `json:"raffle_id"`
	RaffleTitle string         `json:"raffle_title"`
	Winner      *models.Winner `json:"winner"`
	PoolSize    int            `json:"pool_size"`
}

// Skipped is a raffle the batch could not draw for.
type Skipped struct {
	RaffleID    uuid.UUID `json:"raffle_id"`
	RaffleTitle string    `json:"raffle_title"`
	Reason      string    `json:"reason"`
}

// randInt returns a uniform integer in [0, n). Tests replace it.
var randInt = secureRandInt

func secureRandInt(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random range must be positive, got %d", n)
	}
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// TicketNumber builds a winner ticket: the first three letters of the title upper-cased and
// the winner's 1-based sequence within the raffle, e.g. SUM-0003.
func TicketNumber(title string, seq int) string {
	prefix := strings.TrimSpace(title)
	if utf8.RuneCountInString(prefix) > 3 {
		prefix = string([]rune(prefix)[:3])
	}
	return fmt.Sprintf("%s-%04d", strings.ToUpper(prefix), seq)
}

// Engine selects winners.
type Engine struct {
	winners   Store
	entries   EntrySource
	raffles   RaffleSource
	locker    Locker
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger

	// raffles already reported as having nothing to draw
	skipMu   sync.Mutex
	skipSeen map[uuid.UUID]struct{}
}

// NewEngine creates a winner engine. locker, notifier and publisher may be nil.
func NewEngine(winners Store, entries EntrySource, raffleSource RaffleSource, locker Locker, notifier Notifier, publisher Publisher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		winners:   winners,
		entries:   entries,
		raffles:   raffleSource,
		locker:    locker,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
		skipSeen:  map[uuid.UUID]struct{}{},
	}
}

// WithClock replaces the time source used for end-of-raffle checks.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func lockKey(raffleID uuid.UUID) string {
	return "raffle:draw:" + raffleID.String()
}

// lock takes the per-raffle draw lock. A Redis failure other than contention is logged and the
// draw proceeds; the unique indexes still reject a second winner.
func (e *Engine) lock(ctx context.Context, raffleID uuid.UUID) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	release, err := e.locker.Acquire(ctx, lockKey(raffleID), drawLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, apperror.ErrDrawInProgress
		}
		e.logger.Warn("draw lock unavailable", zap.String("raffle_id", raffleID.String()), zap.Error(err))
		return func() {}, nil
	}
	return release, nil
}

// endedRaffle loads the raffle and refuses to draw before its end.
func (e *Engine) endedRaffle(ctx context.Context, raffleID uuid.UUID) (*models.Raffle, error) {
	raffle, err := e.raffles.GetByID(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if raffles.ComputeStatus(raffle, e.now()) != models.RaffleStatusEnded {
		return nil, apperror.ErrRaffleStillActive
	}
	return raffle, nil
}

// SelectRandomWinner performs the automatic draw for a raffle. It succeeds at most once per raffle.
func (e *Engine) SelectRandomWinner(ctx context.Context, raffleID uuid.UUID) (*SelectionResult, error) {
	release, err := e.lock(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	defer release()

	raffle, err := e.endedRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	done, err := e.winners.HasAutomaticWinner(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, apperror.ErrWinnerAlreadySelected
	}
	return e.drawRandom(ctx, raffle, models.SelectedBySystem, SelectOptions{Method: models.SelectionRandom})
}

// SelectWinner records an administrator's selection, either a named entry or a fresh random draw.
func (e *Engine) SelectWinner(ctx context.Context, actor uuid.UUID, raffleID uuid.UUID, opts SelectOptions) (*SelectionResult, error) {
	switch opts.Method {
	case models.SelectionManual:
		if opts.EntryID == uuid.Nil {
			return nil, apperror.Field("entry_id", "is required for manual selection")
		}
	case models.SelectionRandom:
	default:
		return nil, apperror.Field("selection_method", "must be manual or random")
	}

	release, err := e.lock(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	defer release()

	raffle, err := e.endedRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if opts.Method == models.SelectionRandom {
		return e.drawRandom(ctx, raffle, actor.String(), opts)
	}

	entry, err := e.entries.GetByID(ctx, opts.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.RaffleID != raffle.ID {
		return nil, apperror.Field("entry_id", "entry does not belong to this raffle")
	}
	existing, err := e.winners.ListByRaffle(ctx, raffle.ID)
	if err != nil {
		return nil, err
	}
	for _, w := range existing {
		if w.EntryID == entry.ID {
			return nil, apperror.ErrWinnerAlreadySelected
		}
	}
	return e.record(ctx, raffle, entry, len(existing), actor.String(), opts, 0)
}

// drawRandom picks uniformly among eligible entries that have not already won.
func (e *Engine) drawRandom(ctx context.Context, raffle *models.Raffle, actor string, opts SelectOptions) (*SelectionResult, error) {
	eligible, err := e.entries.ListEligible(ctx, raffle.ID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, apperror.ErrNoEligibleEntries
	}
	existing, err := e.winners.ListByRaffle(ctx, raffle.ID)
	if err != nil {
		return nil, err
	}
	won := make(map[uuid.UUID]struct{}, len(existing))
	for _, w := range existing {
		won[w.EntryID] = struct{}{}
	}
	pool := make([]models.Entry, 0, len(eligible))
	for _, en := range eligible {
		if _, ok := won[en.ID]; !ok {
			pool = append(pool, en)
		}
	}
	if len(pool) == 0 {
		return nil, apperror.ErrNoEntriesAvailable
	}

	i, err := randInt(len(pool))
	if err != nil {
		return nil, fmt.Errorf("draw random index: %w", err)
	}
	opts.Method = models.SelectionRandom
	return e.record(ctx, raffle, &pool[i], len(existing), actor, opts, len(pool))
}

func (e *Engine) record(ctx context.Context, raffle *models.Raffle, entry *models.Entry, existing int, actor string, opts SelectOptions, poolSize int) (*SelectionResult, error) {
	w := &models.Winner{
		RaffleID:         raffle.ID,
		BusinessID:       entry.BusinessID,
		EntryID:          entry.ID,
		TicketNumber:     TicketNumber(raffle.Title, existing+1),
		WinnerName:       entry.FullName(),
		WinnerEmail:      entry.Email,
		WinnerPhone:      entry.Phone,
		SelectedBy:       actor,
		SelectionMethod:  opts.Method,
		PrizeDescription: strings.TrimSpace(opts.PrizeDescription),
		Notes:            strings.TrimSpace(opts.Notes),
	}
	if err := e.winners.Create(ctx, w); err != nil {
		return nil, err
	}
	e.logger.Info("winner selected",
		zap.String("raffle_id", raffle.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("ticket_number", w.TicketNumber),
		zap.String("selected_by", actor),
		zap.String("method", string(w.SelectionMethod)),
	)
	e.afterSelect(ctx, raffle, w)
	return &SelectionResult{RaffleID: raffle.ID, RaffleTitle: raffle.Title, Winner: w, PoolSize: poolSize}, nil
}

// afterSelect runs the best-effort side effects of a stored winner.
func (e *Engine) afterSelect(ctx context.Context, raffle *models.Raffle, w *models.Winner) {
	if e.notifier != nil {
		if err := e.notifier.WinnerSelected(ctx, notify.WinnerNotice{Winner: w, Raffle: raffle}); err != nil {
			e.logger.Warn("winner notification not queued", zap.String("winner_id", w.ID.String()), zap.Error(err))
		}
	}
	if e.publisher != nil {
		businessID := w.BusinessID
		ev := realtime.Event{
			Name:       realtime.EventWinnerSelected,
			RaffleID:   raffle.ID,
			BusinessID: &businessID,
			Data: map[string]interface{}{
				"winner_id":     w.ID,
				"ticket_number": w.TicketNumber,
				"winner_name":   w.WinnerName,
				"method":        w.SelectionMethod,
			},
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Warn("winner event not published", zap.String("raffle_id", raffle.ID.String()), zap.Error(err))
		}
	}
}

// ResendNotifications queues the notification again for every winner of raffleID that has not
// been notified yet and returns how many were queued.
func (e *Engine) ResendNotifications(ctx context.Context, raffleID uuid.UUID) (int, error) {
	if e.notifier == nil {
		return 0, errors.New("winner notifications are not configured")
	}
	raffle, err := e.raffles.GetByID(ctx, raffleID)
	if err != nil {
		return 0, err
	}
	list, err := e.winners.ListByRaffle(ctx, raffleID)
	if err != nil {
		return 0, err
	}
	queued := 0
	for i := range list {
		w := &list[i]
		if w.NotifiedAt != nil {
			continue
		}
		if err := e.notifier.WinnerSelected(ctx, notify.WinnerNotice{Winner: w, Raffle: raffle}); err != nil {
			return queued, fmt.Errorf("resend winner %s: %w", w.ID, err)
		}
		queued++
	}
	e.logger.Info("winner notifications resent", zap.String("raffle_id", raffleID.String()), zap.Int("queued", queued))
	return queued, nil
}

// SelectWinnersForEndedRaffles draws once for every ended raffle still waiting for its automatic
// winner. A failing raffle is skipped and the batch continues.
func (e *Engine) SelectWinnersForEndedRaffles(ctx context.Context) ([]SelectionResult, []Skipped, error) {
	due, err := e.raffles.ListAwaitingDraw(ctx, e.now())
	if err != nil {
		return nil, nil, err
	}
	results := []SelectionResult{}
	skipped := []Skipped{}
	for _, r := range due {
		res, err := e.SelectRandomWinner(ctx, r.ID)
		if err != nil {
			e.logSkip(r.ID, err)
			skipped = append(skipped, Skipped{RaffleID: r.ID, RaffleTitle: r.Title, Reason: skipReason(err)})
			continue
		}
		e.skipMu.Lock()
		delete(e.skipSeen, r.ID)
		e.skipMu.Unlock()
		results = append(results, *res)
	}
	return results, skipped, nil
}

// logSkip reports a raffle without entries once at info level and at debug level on later runs.
// Any other failure is a warning every time.
func (e *Engine) logSkip(raffleID uuid.UUID, err error) {
	fields := []zap.Field{zap.String("raffle_id", raffleID.String()), zap.Error(err)}
	if apperror.KindOf(err) != apperror.KindExhausted {
		e.logger.Warn("automatic draw skipped", fields...)
		return
	}
	e.skipMu.Lock()
	_, seen := e.skipSeen[raffleID]
	e.skipSeen[raffleID] = struct{}{}
	e.skipMu.Unlock()
	if seen {
		e.logger.Debug("automatic draw still skipped", fields...)
		return
	}
	e.logger.Info("automatic draw skipped", fields...)
}

func skipReason(err error) string {
	if _, ok := apperror.As(err); ok {
		return err.Error()
	}
	return "internal error"
}
