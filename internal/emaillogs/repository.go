package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records one delivery attempt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (raffle_id, entry_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, el.RaffleID, el.EntryID, el.EmailType, el.RecipientEmail, el.Subject, el.Status,
		el.SentAt, el.ErrorMessage).Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListByRaffle returns email logs for a raffle, newest first.
func (r *Repository) ListByRaffle(ctx context.Context, raffleID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, raffle_id, entry_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE raffle_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.RaffleID, &el.EntryID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
