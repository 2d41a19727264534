package entries

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

var fixedNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	entries []models.Entry
	// raceEmail simulates a concurrent insert: ExistsByEmail misses it but Create collides.
	raceEmail string
}

func (m *memStore) ExistsByEmail(_ context.Context, raffleID uuid.UUID, email string) (bool, error) {
	for _, e := range m.entries {
		if e.RaffleID == raffleID && e.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Create(_ context.Context, e *models.Entry) error {
	if m.raceEmail != "" && e.Email == m.raceEmail {
		return apperror.ErrDuplicateEntry
	}
	e.ID = uuid.New()
	e.CreatedAt = fixedNow
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memStore) CountByRaffle(_ context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (int, error) {
	n := 0
	for _, e := range m.entries {
		if e.RaffleID == raffleID && (businessID == nil || e.BusinessID == *businessID) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range m.entries {
		if f.RaffleID != nil && e.RaffleID != *f.RaffleID {
			continue
		}
		if f.BusinessID != nil && e.BusinessID != *f.BusinessID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ExportRows(ctx context.Context, f Filter) ([]models.EntryExportRow, error) {
	list, _ := m.List(ctx, f)
	rows := make([]models.EntryExportRow, 0, len(list))
	for _, e := range list {
		rows = append(rows, models.EntryExportRow{Entry: e, RaffleTitle: "Summer Draw", BusinessName: "Acme"})
	}
	return rows, nil
}

type fakeAssignments struct {
	links []*models.BusinessRaffle
}

func (f *fakeAssignments) GetActive(_ context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error) {
	for _, l := range f.links {
		if l.BusinessID == businessID && l.RaffleID == raffleID && l.IsActive {
			return l, nil
		}
	}
	return nil, apperror.ErrAssignmentNotFound
}

func (f *fakeAssignments) GetByShareCode(_ context.Context, code string) (*models.BusinessRaffle, error) {
	for _, l := range f.links {
		if l.ShareCode == code && l.IsActive {
			return l, nil
		}
	}
	return nil, apperror.ErrAssignmentNotFound
}

type fakeRaffles map[uuid.UUID]*models.Raffle

func (f fakeRaffles) GetByID(_ context.Context, id uuid.UUID) (*models.Raffle, error) {
	r, ok := f[id]
	if !ok {
		return nil, apperror.ErrRaffleNotFound
	}
	return r, nil
}

type recordingNotifier struct {
	sent []notify.EntryConfirmation
	err  error
}

func (n *recordingNotifier) EntryConfirmation(_ context.Context, in notify.EntryConfirmation) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, in)
	return nil
}

type recordingPublisher struct {
	events []realtime.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	svc       *Service
	store     *memStore
	notifier  *recordingNotifier
	publisher *recordingPublisher
	raffle    *models.Raffle
	link      *models.BusinessRaffle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	raffle := &models.Raffle{
		ID:        uuid.New(),
		Title:     "Summer Draw",
		StartDate: fixedNow.Add(-24 * time.Hour),
		EndDate:   fixedNow.Add(24 * time.Hour),
		IsActive:  true,
	}
	link := &models.BusinessRaffle{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		RaffleID:   raffle.ID,
		IsActive:   true,
		ShareCode:  "abcDEF1234",
		Customization: models.Customization{
			RedirectURL: "https://example.com/thanks",
		},
	}
	f := &fixture{
		store:     &memStore{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		raffle:    raffle,
		link:      link,
	}
	f.svc = NewService(f.store, &fakeAssignments{links: []*models.BusinessRaffle{link}}, fakeRaffles{raffle.ID: raffle}, f.notifier, f.publisher, nil)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) input(email string) SubmitInput {
	return SubmitInput{
		BusinessID:    f.link.BusinessID,
		RaffleID:      f.raffle.ID,
		Entrant:       Entrant{FirstName: "Jane", LastName: "Doe", Email: email, Phone: "+44 7700 900123"},
		AgreedToTerms: true,
		IP:            "203.0.113.7",
	}
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Submit(context.Background(), f.input("jane@example.com"))
	require.NoError(t, err)

	require.Len(t, f.store.entries, 1)
	stored := f.store.entries[0]
	assert.Equal(t, stored.ID, res.EntryID)
	assert.Equal(t, TicketNumber(stored.ID), res.TicketNumber)
	assert.Equal(t, "https://example.com/thanks", res.RedirectURL)
	assert.Equal(t, f.link.BusinessID, stored.BusinessID)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.True(t, stored.AgreedToTerms)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, res.TicketNumber, f.notifier.sent[0].TicketNumber)
	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, realtime.EventEntryCreated, ev.Name)
	require.NotNil(t, ev.BusinessID)
	assert.Equal(t, f.link.BusinessID, *ev.BusinessID)
	assert.Equal(t, 1, ev.Data.(map[string]interface{})["entry_count"])
}

func TestSubmit_DuplicateEmailIgnoresCaseAndWhitespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.input("Jane@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", f.store.entries[0].Email)

	_, err = f.svc.Submit(ctx, f.input("  JANE@example.COM "))
	assert.ErrorIs(t, err, apperror.ErrDuplicateEntry)
	assert.Len(t, f.store.entries, 1)
}

func TestSubmit_SameEmailOtherRaffleAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.entries = append(f.store.entries, models.Entry{ID: uuid.New(), RaffleID: uuid.New(), Email: "jane@example.com"})

	_, err := f.svc.Submit(ctx, f.input("jane@example.com"))
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentInsertReportsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.store.raceEmail = "jane@example.com"

	_, err := f.svc.Submit(context.Background(), f.input("jane@example.com"))
	assert.ErrorIs(t, err, apperror.ErrDuplicateEntry)
	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.publisher.events)
}

func TestSubmit_OutsideWindow(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"not started", fixedNow.Add(time.Hour), fixedNow.Add(48 * time.Hour)},
		{"ended", fixedNow.Add(-48 * time.Hour), fixedNow.Add(-time.Hour)},
		{"ends exactly now", fixedNow.Add(-48 * time.Hour), fixedNow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.raffle.StartDate = tt.start
			f.raffle.EndDate = tt.end

			_, err := f.svc.Submit(context.Background(), f.input("jane@example.com"))
			assert.ErrorIs(t, err, apperror.ErrRaffleInactiveOrExpired)
			assert.Empty(t, f.store.entries)
		})
	}
}

func TestSubmit_UnknownAssignment(t *testing.T) {
	f := newFixture(t)
	in := f.input("jane@example.com")
	in.BusinessID = uuid.New()

	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, apperror.ErrAssignmentNotFound)
}

func TestSubmit_ValidationFields(t *testing.T) {
	f := newFixture(t)
	in := f.input("not-an-email")
	in.Entrant.FirstName = "  "
	in.Entrant.Phone = "call me"
	in.AgreedToTerms = false

	_, err := f.svc.Submit(context.Background(), in)
	require.ErrorIs(t, err, apperror.ErrValidationFailed)
	verr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "first_name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "agreed_to_terms")
	assert.NotContains(t, verr.Fields, "last_name")
}

func TestSubmit_CustomAnswers(t *testing.T) {
	f := newFixture(t)
	f.link.Customization.CustomQuestions = []models.CustomQuestion{
		{ID: "size", Prompt: "T-shirt size", Type: models.QuestionSelect, Required: true, Options: []string{"S", "M", "L"}},
		{ID: "ref", Prompt: "Referrer", Type: models.QuestionText},
	}
	ctx := context.Background()

	in := f.input("jane@example.com")
	in.Answers = map[string]string{"size": "XL"}
	_, err := f.svc.Submit(ctx, in)
	require.ErrorIs(t, err, apperror.ErrValidationFailed)
	verr, _ := apperror.As(err)
	assert.Contains(t, verr.Fields, "answers.size")

	in.Answers = map[string]string{"size": "M", "unknown": "dropped"}
	_, err = f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"size": "M"}, f.store.entries[0].Answers)
}

func TestSubmit_SideEffectFailuresDoNotFailEntry(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	f.publisher.err = errors.New("redis down")

	res, err := f.svc.Submit(context.Background(), f.input("jane@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.TicketNumber)
	assert.Len(t, f.store.entries, 1)
}

func TestSubmit_NilSideEffects(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, &fakeAssignments{links: []*models.BusinessRaffle{f.link}}, fakeRaffles{f.raffle.ID: f.raffle}, nil, nil, nil)
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Submit(context.Background(), f.input("jane@example.com"))
	assert.NoError(t, err)
}

func TestSubmitByShareCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.input("jane@example.com")
	in.BusinessID = uuid.Nil
	in.RaffleID = uuid.Nil
	_, err := f.svc.SubmitByShareCode(ctx, "abcDEF1234", in)
	require.NoError(t, err)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, f.link.BusinessID, f.store.entries[0].BusinessID)
	assert.Equal(t, f.raffle.ID, f.store.entries[0].RaffleID)

	_, err = f.svc.SubmitByShareCode(ctx, "nope", in)
	assert.ErrorIs(t, err, apperror.ErrAssignmentNotFound)
}

func TestTicketNumber(t *testing.T) {
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174abc")
	assert.Equal(t, "14174ABC", TicketNumber(id))
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.input("jane@example.com")
	in.MarketingConsent = true
	_, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.ExportCSV(ctx, Filter{RaffleID: &f.raffle.ID}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"Entry ID","Ticket Number","Raffle"`))
	assert.Contains(t, lines[1], `"Summer Draw","Acme","Jane","Doe","jane@example.com"`)
	assert.Contains(t, lines[1], `"Yes","Yes"`)
	assert.Contains(t, lines[1], `"2026-07-01T12:00:00Z"`)
}
