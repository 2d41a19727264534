package raffles

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

const raffleColumns = `id, title, description, start_date, end_date, prize_images, main_image_index, cover_image,
	is_active, status, archived, archived_at, created_by, created_at, updated_at`

// Repository handles raffle persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a raffle repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRaffle(row pgx.Row) (*models.Raffle, error) {
	var r models.Raffle
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.StartDate, &r.EndDate, &r.PrizeImages, &r.MainImageIndex,
		&r.CoverImage, &r.IsActive, &r.Status, &r.Archived, &r.ArchivedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if r.PrizeImages == nil {
		r.PrizeImages = []string{}
	}
	return &r, nil
}

func collectRaffles(rows pgx.Rows) ([]models.Raffle, error) {
	defer rows.Close()
	list := []models.Raffle{}
	for rows.Next() {
		r, err := scanRaffle(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// Create inserts a new raffle.
func (r *Repository) Create(ctx context.Context, raffle *models.Raffle) error {
	const q = `INSERT INTO raffles (title, description, start_date, end_date, prize_images, main_image_index, cover_image, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, archived, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, raffle.Title, raffle.Description, raffle.StartDate, raffle.EndDate, raffle.PrizeImages,
		raffle.MainImageIndex, raffle.CoverImage, raffle.IsActive, raffle.CreatedBy).
		Scan(&raffle.ID, &raffle.Status, &raffle.Archived, &raffle.CreatedAt, &raffle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert raffle: %w", err)
	}
	return nil
}

// GetByID returns a raffle by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Raffle, error) {
	raffle, err := scanRaffle(r.pool.QueryRow(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.ErrRaffleNotFound
		}
		return nil, fmt.Errorf("get raffle: %w", err)
	}
	return raffle, nil
}

// List returns raffles newest first. Archived raffles are included only when asked.
func (r *Repository) List(ctx context.Context, includeArchived bool) ([]models.Raffle, error) {
	q := `SELECT ` + raffleColumns + ` FROM raffles`
	if !includeArchived {
		q += ` WHERE NOT archived`
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list raffles: %w", err)
	}
	return collectRaffles(rows)
}

// Update persists the editable fields of a raffle along with its lifecycle flags.
func (r *Repository) Update(ctx context.Context, raffle *models.Raffle) error {
	const q = `UPDATE raffles SET title = $1, description = $2, start_date = $3, end_date = $4, prize_images = $5,
		main_image_index = $6, cover_image = $7, is_active = $8, status = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, raffle.Title, raffle.Description, raffle.StartDate, raffle.EndDate, raffle.PrizeImages,
		raffle.MainImageIndex, raffle.CoverImage, raffle.IsActive, raffle.Status, raffle.ID).Scan(&raffle.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return apperror.ErrRaffleNotFound
		}
		return fmt.Errorf("update raffle: %w", err)
	}
	return nil
}

// Delete removes a raffle and its business assignments in one transaction.
// Entries and winners are kept. Returns the number of assignments removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin delete raffle: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM business_raffles WHERE raffle_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete assignments: %w", err)
	}
	removed := tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM raffles WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete raffle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, apperror.ErrRaffleNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit delete raffle: %w", err)
	}
	return removed, nil
}

// ActivateDue flags raffles whose window has opened. Returns rows changed.
func (r *Repository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE raffles SET is_active = TRUE, status = '', updated_at = NOW()
		WHERE start_date <= $1 AND end_date > $1 AND NOT is_active AND NOT archived`
	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("activate raffles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EndDue deactivates raffles whose window has closed and marks them ended.
func (r *Repository) EndDue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE raffles SET is_active = FALSE, status = $2, updated_at = NOW()
		WHERE end_date <= $1 AND is_active`
	tag, err := r.pool.Exec(ctx, q, now, string(models.RaffleStatusEnded))
	if err != nil {
		return 0, fmt.Errorf("end raffles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListAwaitingDraw returns unarchived raffles that ended before now and have no automatic winner.
func (r *Repository) ListAwaitingDraw(ctx context.Context, now time.Time) ([]models.Raffle, error) {
	const q = `SELECT ` + raffleColumns + ` FROM raffles r
		WHERE r.end_date < $1 AND NOT r.archived
		AND NOT EXISTS (
			SELECT 1 FROM winners w
			WHERE w.raffle_id = r.id AND w.selection_method = 'random' AND w.selected_by = 'system'
		)
		ORDER BY r.end_date`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("list raffles awaiting draw: %w", err)
	}
	return collectRaffles(rows)
}

// ArchiveEndedBefore archives raffles that ended before cutoff. Entries and winners are untouched.
func (r *Repository) ArchiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE raffles SET archived = TRUE, archived_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE end_date < $1 AND NOT archived`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive raffles: %w", err)
	}
	return tag.RowsAffected(), nil
}
