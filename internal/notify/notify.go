// Package notify turns raffle events into queued emails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/queue"
)

// Enqueuer accepts email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// EntryConfirmation is the input for an entry receipt.
type EntryConfirmation struct {
	Entry        *models.Entry
	Raffle       *models.Raffle
	TicketNumber string
}

// WinnerNotice is the input for a winner notification.
type WinnerNotice struct {
	Winner *models.Winner
	Raffle *models.Raffle
}

// Notifier builds notification emails and queues them for the worker.
type Notifier struct {
	q      Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(q Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{q: q, logger: logger}
}

var entryTmpl = template.Must(template.New("entry").Parse(`<h2>You're in, {{.FirstName}}!</h2>
<p>Your entry into <strong>{{.Title}}</strong> has been received.</p>
<p>Your ticket number is <strong>{{.Ticket}}</strong>.</p>
<p>The draw takes place on {{.DrawDate}}. Good luck!</p>`))

var winnerTmpl = template.Must(template.New("winner").Parse(`<h2>Congratulations, {{.Name}}!</h2>
<p>You have won <strong>{{.Title}}</strong>.</p>
{{if .Prize}}<p>Prize: {{.Prize}}</p>{{end}}
<p>Winning ticket: <strong>{{.Ticket}}</strong></p>
<p>We will be in touch shortly with details on claiming your prize.</p>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<h2>Welcome to Raffily, {{.Name}}!</h2>
<p>Your account for <strong>{{.Company}}</strong> is ready and your raffles are waiting in the dashboard.</p>
<p>Sign in with <strong>{{.Email}}</strong> and the temporary password <code>{{.Password}}</code>, then change it.</p>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func drawDate(t time.Time) string {
	return t.UTC().Format("2 January 2006 15:04 MST")
}

// EntryConfirmation queues the receipt email for a new entry.
func (n *Notifier) EntryConfirmation(ctx context.Context, in EntryConfirmation) error {
	html, err := render(entryTmpl, struct {
		FirstName, Title, Ticket, DrawDate string
	}{in.Entry.FirstName, in.Raffle.Title, in.TicketNumber, drawDate(in.Raffle.EndDate)})
	if err != nil {
		return err
	}
	return n.q.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType: models.EmailTypeEntryConfirmation,
		RaffleID:  in.Raffle.ID,
		EntryID:   in.Entry.ID,
		To:        in.Entry.Email,
		Subject:   "Your entry into " + in.Raffle.Title,
		HTML:      html,
	})
}

// WinnerSelected queues the winner notification.
func (n *Notifier) WinnerSelected(ctx context.Context, in WinnerNotice) error {
	html, err := render(winnerTmpl, struct {
		Name, Title, Prize, Ticket string
	}{in.Winner.WinnerName, in.Raffle.Title, in.Winner.PrizeDescription, in.Winner.TicketNumber})
	if err != nil {
		return err
	}
	winnerID := in.Winner.ID
	if winnerID == uuid.Nil {
		return fmt.Errorf("winner notification without winner id")
	}
	return n.q.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType: models.EmailTypeWinnerNotification,
		RaffleID:  in.Raffle.ID,
		EntryID:   in.Winner.EntryID,
		WinnerID:  &winnerID,
		To:        in.Winner.WinnerEmail,
		Subject:   "You won " + in.Raffle.Title + "!",
		HTML:      html,
	})
}

// BusinessWelcome queues the login details for a newly provisioned business.
func (n *Notifier) BusinessWelcome(ctx context.Context, user *models.User, tempPassword string) error {
	html, err := render(welcomeTmpl, struct {
		Name, Company, Email, Password string
	}{user.FullName, user.CompanyName, user.Email, tempPassword})
	if err != nil {
		return err
	}
	return n.q.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType: models.EmailTypeBusinessWelcome,
		To:        user.Email,
		Subject:   "Welcome to Raffily",
		HTML:      html,
	})
}
