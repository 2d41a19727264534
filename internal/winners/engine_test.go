package winners

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/redis"
)

var fixedNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type memWinners struct {
	list []models.Winner
}

func (m *memWinners) Create(_ context.Context, w *models.Winner) error {
	for _, x := range m.list {
		if x.RaffleID == w.RaffleID && x.EntryID == w.EntryID {
			return apperror.ErrWinnerAlreadySelected
		}
		if x.RaffleID == w.RaffleID && x.IsAutomatic() && w.IsAutomatic() {
			return apperror.ErrWinnerAlreadySelected
		}
	}
	w.ID = uuid.New()
	w.SelectedAt = fixedNow
	m.list = append(m.list, *w)
	return nil
}

func (m *memWinners) ListByRaffle(_ context.Context, raffleID uuid.UUID) ([]models.Winner, error) {
	var out []models.Winner
	for _, w := range m.list {
		if w.RaffleID == raffleID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWinners) ListForBusiness(_ context.Context, businessID uuid.UUID) ([]models.Winner, error) {
	var out []models.Winner
	for _, w := range m.list {
		if w.BusinessID == businessID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWinners) HasAutomaticWinner(_ context.Context, raffleID uuid.UUID) (bool, error) {
	for _, w := range m.list {
		if w.RaffleID == raffleID && w.IsAutomatic() {
			return true, nil
		}
	}
	return false, nil
}

type memEntries struct {
	list []models.Entry
}

func (m *memEntries) add(raffleID uuid.UUID, email string) models.Entry {
	e := models.Entry{ID: uuid.New(), BusinessID: uuid.New(), RaffleID: raffleID, FirstName: "Jane", LastName: "Doe", Email: email, AgreedToTerms: true}
	m.list = append(m.list, e)
	return e
}

func (m *memEntries) GetByID(_ context.Context, id uuid.UUID) (*models.Entry, error) {
	for _, e := range m.list {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, apperror.ErrEntryNotFound
}

func (m *memEntries) ListEligible(_ context.Context, raffleID uuid.UUID) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range m.list {
		if e.RaffleID == raffleID && e.AgreedToTerms {
			out = append(out, e)
		}
	}
	return out, nil
}

type memRaffles struct {
	list []*models.Raffle
	// drawn reports raffles that already have an automatic winner.
	drawn func(uuid.UUID) bool
}

func (m *memRaffles) add(title string, end time.Time) *models.Raffle {
	r := &models.Raffle{ID: uuid.New(), Title: title, StartDate: end.Add(-7 * 24 * time.Hour), EndDate: end}
	m.list = append(m.list, r)
	return r
}

func (m *memRaffles) GetByID(_ context.Context, id uuid.UUID) (*models.Raffle, error) {
	for _, r := range m.list {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperror.ErrRaffleNotFound
}

func (m *memRaffles) ListAwaitingDraw(_ context.Context, now time.Time) ([]models.Raffle, error) {
	var out []models.Raffle
	for _, r := range m.list {
		if r.EndDate.Before(now) && !r.Archived && !m.drawn(r.ID) {
			out = append(out, *r)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	notices []notify.WinnerNotice
}

func (n *recordingNotifier) WinnerSelected(_ context.Context, in notify.WinnerNotice) error {
	n.notices = append(n.notices, in)
	return nil
}

type recordingPublisher struct {
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.events = append(p.events, ev)
	return nil
}

type stubLocker struct {
	held     bool
	err      error
	acquired []string
	released int
}

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, redis.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released++ }, nil
}

type fixture struct {
	engine    *Engine
	winners   *memWinners
	entries   *memEntries
	raffles   *memRaffles
	locker    *stubLocker
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		winners:   &memWinners{},
		entries:   &memEntries{},
		locker:    &stubLocker{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.raffles = &memRaffles{drawn: func(id uuid.UUID) bool {
		ok, _ := f.winners.HasAutomaticWinner(context.Background(), id)
		return ok
	}}
	f.engine = NewEngine(f.winners, f.entries, f.raffles, f.locker, f.notifier, f.publisher, nil)
	f.engine.now = func() time.Time { return fixedNow }
	return f
}

func withRandInt(t *testing.T, fn func(int) (int, error)) {
	t.Helper()
	prev := randInt
	randInt = fn
	t.Cleanup(func() { randInt = prev })
}

func TestTicketNumber(t *testing.T) {
	assert.Equal(t, "SUM-0003", TicketNumber("Summer Giveaway", 3))
	assert.Equal(t, "GO-0001", TicketNumber(" go ", 1))
	assert.Equal(t, "ÉTÉ-0012", TicketNumber("été 2026", 12))
}

func TestSecureRandInt(t *testing.T) {
	for i := 0; i < 50; i++ {
		n, err := secureRandInt(3)
		require.NoError(t, err)
		assert.True(t, n >= 0 && n < 3)
	}
	_, err := secureRandInt(0)
	assert.Error(t, err)
}

func TestSelectRandomWinner_NotBeforeEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.raffles.add("Summer", fixedNow.Add(time.Hour))
	f.entries.add(active.ID, "a@example.com")
	endsNow := f.raffles.add("Autumn", fixedNow)
	f.entries.add(endsNow.ID, "b@example.com")

	_, err := f.engine.SelectRandomWinner(ctx, active.ID)
	assert.ErrorIs(t, err, apperror.ErrRaffleStillActive)

	_, err = f.engine.SelectWinner(ctx, uuid.New(), active.ID, SelectOptions{Method: models.SelectionRandom})
	assert.ErrorIs(t, err, apperror.ErrRaffleStillActive)

	// end is exclusive: at now == end the raffle has ended
	_, err = f.engine.SelectRandomWinner(ctx, endsNow.ID)
	assert.NoError(t, err)
	assert.Len(t, f.winners.list, 1)
}

func TestSelectRandomWinner_TicketSequenceAndSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.raffles.add("Summer Giveaway", fixedNow.Add(-time.Hour))
	a := f.entries.add(r.ID, "a@example.com")
	b := f.entries.add(r.ID, "b@example.com")
	c := f.entries.add(r.ID, "c@example.com")
	admin := uuid.New()

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := f.engine.SelectWinner(ctx, admin, r.ID, SelectOptions{Method: models.SelectionManual, EntryID: id})
		require.NoError(t, err)
	}

	res, err := f.engine.SelectRandomWinner(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, res.Winner.EntryID, "only the entry that has not won is drawable")
	assert.Equal(t, "SUM-0003", res.Winner.TicketNumber)
	assert.Equal(t, models.SelectedBySystem, res.Winner.SelectedBy)
	assert.Equal(t, models.SelectionRandom, res.Winner.SelectionMethod)
	assert.Equal(t, "Jane Doe", res.Winner.WinnerName)
	assert.Equal(t, c.BusinessID, res.Winner.BusinessID)
	assert.Equal(t, 1, res.PoolSize)

	require.Len(t, f.notifier.notices, 3)
	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, realtime.EventWinnerSelected, f.publisher.events[2].Name)
	assert.Equal(t, []string{"raffle:draw:" + r.ID.String()}, f.locker.acquired[2:])
	assert.Equal(t, 3, f.locker.released)
}

func TestSelectRandomWinner_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	f.entries.add(r.ID, "a@example.com")
	f.entries.add(r.ID, "b@example.com")

	_, err := f.engine.SelectRandomWinner(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.engine.SelectRandomWinner(ctx, r.ID)
	assert.ErrorIs(t, err, apperror.ErrWinnerAlreadySelected)

	// an administrator can still draw additional winners
	res, err := f.engine.SelectWinner(ctx, uuid.New(), r.ID, SelectOptions{Method: models.SelectionRandom})
	require.NoError(t, err)
	assert.Equal(t, "SUM-0002", res.Winner.TicketNumber)
	assert.Len(t, f.winners.list, 2)
	assert.NotEqual(t, f.winners.list[0].EntryID, f.winners.list[1].EntryID)
}

func TestSelectRandomWinner_Exhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := f.raffles.add("Empty", fixedNow.Add(-time.Hour))

	_, err := f.engine.SelectRandomWinner(ctx, empty.ID)
	assert.ErrorIs(t, err, apperror.ErrNoEligibleEntries)

	r := f.raffles.add("Single", fixedNow.Add(-time.Hour))
	only := f.entries.add(r.ID, "a@example.com")
	_, err = f.engine.SelectWinner(ctx, uuid.New(), r.ID, SelectOptions{Method: models.SelectionManual, EntryID: only.ID})
	require.NoError(t, err)

	_, err = f.engine.SelectRandomWinner(ctx, r.ID)
	assert.ErrorIs(t, err, apperror.ErrNoEntriesAvailable)
}

func TestSelectRandomWinner_IgnoresEntriesWithoutConsent(t *testing.T) {
	f := newFixture(t)
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	e := f.entries.add(r.ID, "a@example.com")
	f.entries.list[0].AgreedToTerms = false

	_, err := f.engine.SelectRandomWinner(context.Background(), r.ID)
	assert.ErrorIs(t, err, apperror.ErrNoEligibleEntries)
	assert.NotEqual(t, uuid.Nil, e.ID)
}

func TestSelectRandomWinner_UsesRandomIndex(t *testing.T) {
	f := newFixture(t)
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	f.entries.add(r.ID, "a@example.com")
	f.entries.add(r.ID, "b@example.com")
	last := f.entries.add(r.ID, "c@example.com")
	var gotN int
	withRandInt(t, func(n int) (int, error) {
		gotN = n
		return n - 1, nil
	})

	res, err := f.engine.SelectRandomWinner(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotN)
	assert.Equal(t, last.ID, res.Winner.EntryID)
}

func TestSelectRandomWinner_RandomFailure(t *testing.T) {
	f := newFixture(t)
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	f.entries.add(r.ID, "a@example.com")
	withRandInt(t, func(int) (int, error) { return 0, errors.New("entropy exhausted") })

	_, err := f.engine.SelectRandomWinner(context.Background(), r.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Empty(t, f.winners.list)
}

func TestSelectRandomWinner_LockContention(t *testing.T) {
	f := newFixture(t)
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	f.entries.add(r.ID, "a@example.com")
	f.locker.held = true

	_, err := f.engine.SelectRandomWinner(context.Background(), r.ID)
	assert.ErrorIs(t, err, apperror.ErrDrawInProgress)
	assert.Empty(t, f.winners.list)
}

func TestSelectRandomWinner_LockBackendDownStillDraws(t *testing.T) {
	f := newFixture(t)
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	f.entries.add(r.ID, "a@example.com")
	f.locker.err = errors.New("connection refused")

	_, err := f.engine.SelectRandomWinner(context.Background(), r.ID)
	assert.NoError(t, err)
	assert.Len(t, f.winners.list, 1)
}

func TestSelectWinner_ManualRepeatIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	x := f.entries.add(r.ID, "x@example.com")
	admin := uuid.New()
	opts := SelectOptions{Method: models.SelectionManual, EntryID: x.ID, PrizeDescription: " Bike ", Notes: "called"}

	res, err := f.engine.SelectWinner(ctx, admin, r.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, models.SelectionManual, res.Winner.SelectionMethod)
	assert.Equal(t, admin.String(), res.Winner.SelectedBy)
	assert.Equal(t, "Bike", res.Winner.PrizeDescription)

	for i := 0; i < 3; i++ {
		_, err = f.engine.SelectWinner(ctx, admin, r.ID, opts)
		assert.ErrorIs(t, err, apperror.ErrWinnerAlreadySelected)
	}
	assert.Len(t, f.winners.list, 1)
}

func TestSelectWinner_ManualValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.raffles.add("Summer", fixedNow.Add(-time.Hour))
	other := f.raffles.add("Other", fixedNow.Add(-time.Hour))
	foreign := f.entries.add(other.ID, "x@example.com")
	admin := uuid.New()

	_, err := f.engine.SelectWinner(ctx, admin, r.ID, SelectOptions{Method: models.SelectionManual})
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)

	_, err = f.engine.SelectWinner(ctx, admin, r.ID, SelectOptions{Method: "lottery"})
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)

	_, err = f.engine.SelectWinner(ctx, admin, r.ID, SelectOptions{Method: models.SelectionManual, EntryID: foreign.ID})
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)

	_, err = f.engine.SelectWinner(ctx, admin, r.ID, SelectOptions{Method: models.SelectionManual, EntryID: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrEntryNotFound)

	_, err = f.engine.SelectWinner(ctx, admin, uuid.New(), SelectOptions{Method: models.SelectionRandom})
	assert.ErrorIs(t, err, apperror.ErrRaffleNotFound)
}

func TestSelectWinnersForEndedRaffles_SkipsEmptyRaffle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := f.raffles.add("Empty", fixedNow.Add(-2*time.Hour))
	full := f.raffles.add("Full", fixedNow.Add(-time.Hour))
	f.entries.add(full.ID, "a@example.com")
	running := f.raffles.add("Running", fixedNow.Add(time.Hour))
	f.entries.add(running.ID, "b@example.com")

	results, skipped, err := f.engine.SelectWinnersForEndedRaffles(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, full.ID, results[0].RaffleID)
	require.Len(t, skipped, 1)
	assert.Equal(t, empty.ID, skipped[0].RaffleID)
	assert.Equal(t, apperror.ErrNoEligibleEntries.Message, skipped[0].Reason)

	// the drawn raffle is not drawn again
	results, skipped, err = f.engine.SelectWinnersForEndedRaffles(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, skipped, 1)
	assert.Len(t, f.winners.list, 1)
}

func TestSelectWinnersForEndedRaffles_EmptyRaffleLoggedOnce(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	f.engine.logger = zap.New(core)
	ctx := context.Background()
	empty := f.raffles.add("Empty", fixedNow.Add(-time.Hour))

	for i := 0; i < 3; i++ {
		_, skipped, err := f.engine.SelectWinnersForEndedRaffles(ctx)
		require.NoError(t, err)
		require.Len(t, skipped, 1)
	}

	entries := logs.FilterField(zap.String("raffle_id", empty.ID.String())).AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	// once entries arrive the raffle is drawn and forgotten
	f.entries.add(empty.ID, "late@example.com")
	results, _, err := f.engine.SelectWinnersForEndedRaffles(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotContains(t, f.engine.skipSeen, empty.ID)
}
