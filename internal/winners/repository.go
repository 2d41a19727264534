package winners

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
)

const winnerColumns = `id, raffle_id, business_id, entry_id, ticket_number, winner_name, winner_email,
	COALESCE(winner_phone, ''), selected_at, selected_by, selection_method, COALESCE(prize_description, ''),
	COALESCE(notes, ''), notified_at`

// Repository handles winner persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a winner repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanWinner(row pgx.Row) (*models.Winner, error) {
	var w models.Winner
	err := row.Scan(&w.ID, &w.RaffleID, &w.BusinessID, &w.EntryID, &w.TicketNumber, &w.WinnerName, &w.WinnerEmail,
		&w.WinnerPhone, &w.SelectedAt, &w.SelectedBy, &w.SelectionMethod, &w.PrizeDescription, &w.Notes, &w.NotifiedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func collectWinners(rows pgx.Rows) ([]models.Winner, error) {
	defer rows.Close()
	list := []models.Winner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Create inserts a winner. Either unique index firing means the draw lost a race.
func (r *Repository) Create(ctx context.Context, w *models.Winner) error {
	const q = `INSERT INTO winners (raffle_id, business_id, entry_id, ticket_number, winner_name, winner_email, winner_phone,
		selected_by, selection_method, prize_description, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, NULLIF($10, ''), NULLIF($11, ''))
		RETURNING id, selected_at`
	err := r.pool.QueryRow(ctx, q, w.RaffleID, w.BusinessID, w.EntryID, w.TicketNumber, w.WinnerName, w.WinnerEmail,
		w.WinnerPhone, w.SelectedBy, w.SelectionMethod, w.PrizeDescription, w.Notes).Scan(&w.ID, &w.SelectedAt)
	if err != nil {
		if database.IsUniqueViolation(err, database.IndexWinnersRaffleEntry) ||
			database.IsUniqueViolation(err, database.IndexWinnersAutomaticPerRaffle) {
			return apperror.ErrWinnerAlreadySelected
		}
		return fmt.Errorf("insert winner: %w", err)
	}
	return nil
}

// CountByRaffle returns how many winners a raffle has, optionally only those entered through businessID.
func (r *Repository) CountByRaffle(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM winners WHERE raffle_id = $1 AND ($2::uuid IS NULL OR business_id = $2)`
	var n int
	if err := r.pool.QueryRow(ctx, q, raffleID, businessID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count winners: %w", err)
	}
	return n, nil
}

// ListByRaffle returns a raffle's winners in selection order.
func (r *Repository) ListByRaffle(ctx context.Context, raffleID uuid.UUID) ([]models.Winner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+winnerColumns+` FROM winners WHERE raffle_id = $1 ORDER BY selected_at`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	return collectWinners(rows)
}

// ListForBusiness returns winners whose entries came through businessID, newest first.
func (r *Repository) ListForBusiness(ctx context.Context, businessID uuid.UUID) ([]models.Winner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+winnerColumns+` FROM winners WHERE business_id = $1 ORDER BY selected_at DESC`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list business winners: %w", err)
	}
	return collectWinners(rows)
}

// HasAutomaticWinner reports whether the scheduler already drew for the raffle.
func (r *Repository) HasAutomaticWinner(ctx context.Context, raffleID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM winners WHERE raffle_id = $1 AND selection_method = $2 AND selected_by = $3)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, raffleID, models.SelectionRandom, models.SelectedBySystem).Scan(&ok); err != nil {
		return false, fmt.Errorf("check automatic winner: %w", err)
	}
	return ok, nil
}

// MarkNotified stamps notified_at once the winner email went out.
func (r *Repository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE winners SET notified_at = $2 WHERE id = $1 AND notified_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark winner notified: %w", err)
	}
	return nil
}
