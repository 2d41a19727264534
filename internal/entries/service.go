package entries

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/businessraffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)

// Store is the entry persistence used by Service.
type Store interface {
	ExistsByEmail(ctx context.Context, raffleID uuid.UUID, email string) (bool, error)
	Create(ctx context.Context, e *models.Entry) error
	CountByRaffle(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (int, error)
	List(ctx context.Context, f Filter) ([]models.Entry, error)
	ExportRows(ctx context.Context, f Filter) ([]models.EntryExportRow, error)
}

// Assignments resolves the business link an entry arrives through.
type Assignments interface {
	GetActive(ctx context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error)
	GetByShareCode(ctx context.Context, code string) (*models.BusinessRaffle, error)
}

// RaffleGetter loads raffles.
type RaffleGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error)
}

// Notifier sends the entry receipt.
type Notifier interface {
	EntryConfirmation(ctx context.Context, in notify.EntryConfirmation) error
}

// Publisher pushes dashboard events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// Filter narrows entry listings. Limit 0 means no limit.
type Filter struct {
	RaffleID   *uuid.UUID
	BusinessID *uuid.UUID
	Limit      int
	Offset     int
}

// Entrant is the person entering.
type Entrant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// SubmitInput is one entry attempt.
type SubmitInput struct {
	BusinessID       uuid.UUID
	RaffleID         uuid.UUID
	Entrant          Entrant
	Answers          map[string]string
	AgreedToTerms    bool
	MarketingConsent bool
	IP               string
}

// SubmitResult is returned to the entrant.
type SubmitResult struct {
	EntryID      uuid.UUID `json:"entry_id"`
	TicketNumber string    `json:"ticket_number"`
	RedirectURL  string    `json:"redirect_url,omitempty"`
}

// Service implements entry submission and listing.
type Service struct {
	store       Store
	assignments Assignments
	raffles     RaffleGetter
	notifier    Notifier
	publisher   Publisher
	now         func() time.Time
	logger      *zap.Logger
}

// NewService creates an entry service. notifier and publisher may be nil.
func NewService(store Store, assignments Assignments, raffleGetter RaffleGetter, notifier Notifier, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		assignments: assignments,
		raffles:     raffleGetter,
		notifier:    notifier,
		publisher:   publisher,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source used for window checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NormalizeEmail lower-cases and trims an address. Dedupe compares normalized forms.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TicketNumber is the entrant-facing ticket: the last 8 hex digits of the entry id, upper-cased.
func TicketNumber(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return strings.ToUpper(hex[len(hex)-8:])
}

func validateEntrant(in *SubmitInput) error {
	e := &in.Entrant
	fields := map[string]string{}
	err := validation.ValidateStruct(e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
	)
	if ferr, ok := apperror.As(apperror.FromValidation(err)); ok {
		for k, v := range ferr.Fields {
			fields[k] = v
		}
	} else if err != nil {
		return err
	}
	if !in.AgreedToTerms {
		fields["agreed_to_terms"] = "you must agree to the terms and conditions"
	}
	if len(fields) > 0 {
		return apperror.Validation(fields)
	}
	return nil
}

// Submit records an entry through a business's assignment of a raffle.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	assignment, err := s.assignments.GetActive(ctx, in.BusinessID, in.RaffleID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, assignment, in)
}

// SubmitByShareCode records an entry through a share code link.
func (s *Service) SubmitByShareCode(ctx context.Context, code string, in SubmitInput) (*SubmitResult, error) {
	assignment, err := s.assignments.GetByShareCode(ctx, code)
	if err != nil {
		return nil, err
	}
	in.BusinessID = assignment.BusinessID
	in.RaffleID = assignment.RaffleID
	return s.submit(ctx, assignment, in)
}

func (s *Service) submit(ctx context.Context, assignment *models.BusinessRaffle, in SubmitInput) (*SubmitResult, error) {
	raffle, err := s.raffles.GetByID(ctx, in.RaffleID)
	if err != nil {
		return nil, err
	}
	if raffles.ComputeStatus(raffle, s.now()) != models.RaffleStatusActive {
		return nil, apperror.ErrRaffleInactiveOrExpired
	}

	in.Entrant.FirstName = strings.TrimSpace(in.Entrant.FirstName)
	in.Entrant.LastName = strings.TrimSpace(in.Entrant.LastName)
	in.Entrant.Email = NormalizeEmail(in.Entrant.Email)
	in.Entrant.Phone = strings.TrimSpace(in.Entrant.Phone)
	if err := validateEntrant(&in); err != nil {
		return nil, err
	}
	answers, err := businessraffles.ValidateAnswers(assignment.Customization.CustomQuestions, in.Answers)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByEmail(ctx, raffle.ID, in.Entrant.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.ErrDuplicateEntry
	}

	entry := &models.Entry{
		BusinessID:       in.BusinessID,
		RaffleID:         raffle.ID,
		FirstName:        in.Entrant.FirstName,
		LastName:         in.Entrant.LastName,
		Email:            in.Entrant.Email,
		Phone:            in.Entrant.Phone,
		Answers:          answers,
		AgreedToTerms:    true,
		MarketingConsent: in.MarketingConsent,
		IPAddress:        in.IP,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, err
	}
	ticket := TicketNumber(entry.ID)
	s.logger.Info("entry submitted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("raffle_id", raffle.ID.String()),
		zap.String("business_id", entry.BusinessID.String()),
	)

	s.afterSubmit(ctx, entry, raffle, ticket)
	return &SubmitResult{EntryID: entry.ID, TicketNumber: ticket, RedirectURL: assignment.Customization.RedirectURL}, nil
}

// afterSubmit runs the best-effort side effects of a stored entry. Failures are logged only.
func (s *Service) afterSubmit(ctx context.Context, entry *models.Entry, raffle *models.Raffle, ticket string) {
	if s.notifier != nil {
		if err := s.notifier.EntryConfirmation(ctx, notify.EntryConfirmation{Entry: entry, Raffle: raffle, TicketNumber: ticket}); err != nil {
			s.logger.Warn("entry confirmation not queued", zap.String("entry_id", entry.ID.String()), zap.Error(err))
		}
	}
	if s.publisher == nil {
		return
	}
	total, err := s.store.CountByRaffle(ctx, raffle.ID, nil)
	if err != nil {
		s.logger.Warn("entry count failed", zap.String("raffle_id", raffle.ID.String()), zap.Error(err))
		return
	}
	businessID := entry.BusinessID
	ev := realtime.Event{
		Name:       realtime.EventEntryCreated,
		RaffleID:   raffle.ID,
		BusinessID: &businessID,
		Data: map[string]interface{}{
			"entry_id":    entry.ID,
			"first_name":  entry.FirstName,
			"entry_count": total,
			"created_at":  entry.CreatedAt,
		},
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("entry event not published", zap.String("raffle_id", raffle.ID.String()), zap.Error(err))
	}
}

// List returns entries matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Entry, error) {
	return s.store.List(ctx, f)
}

var exportHeader = []string{
	"Entry ID", "Ticket Number", "Raffle", "Business", "First Name", "Last Name", "Email", "Phone",
	"Agreed To Terms", "Marketing Consent", "Answers", "IP Address", "Submitted At",
}

// ExportCSV writes entries matching f as CSV with every field quoted.
func (s *Service) ExportCSV(ctx context.Context, f Filter, w io.Writer) (int, error) {
	rows, err := s.store.ExportRows(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(rows), writeCSV(w, rows)
}
