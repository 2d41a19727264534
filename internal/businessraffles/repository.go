package businessraffles

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

const assignmentColumns = `br.id, br.business_id, br.raffle_id, br.is_active, br.share_code, br.customization, br.created_at, br.updated_at`

const raffleJoinColumns = `r.id, r.title, r.description, r.start_date, r.end_date, r.prize_images, r.main_image_index, r.cover_image,
	r.is_active, r.status, r.archived, r.archived_at, r.created_by, r.created_at, r.updated_at`

// Repository handles business_raffles persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a business raffle repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAssignment(row pgx.Row) (*models.BusinessRaffle, error) {
	var br models.BusinessRaffle
	if err := row.Scan(&br.ID, &br.BusinessID, &br.RaffleID, &br.IsActive, &br.ShareCode, &br.Customization,
		&br.CreatedAt, &br.UpdatedAt); err != nil {
		return nil, err
	}
	return &br, nil
}

func (r *Repository) getOne(ctx context.Context, where string, args ...interface{}) (*models.BusinessRaffle, error) {
	br, err := scanAssignment(r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM business_raffles br WHERE `+where, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return br, nil
}

// GetByID returns an assignment by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessRaffle, error) {
	return r.getOne(ctx, `br.id = $1`, id)
}

// GetActive returns the active assignment of raffleID to businessID.
func (r *Repository) GetActive(ctx context.Context, businessID, raffleID uuid.UUID) (*models.BusinessRaffle, error) {
	return r.getOne(ctx, `br.business_id = $1 AND br.raffle_id = $2 AND br.is_active`, businessID, raffleID)
}

// GetByShareCode returns the active assignment behind a share code.
func (r *Repository) GetByShareCode(ctx context.Context, code string) (*models.BusinessRaffle, error) {
	return r.getOne(ctx, `br.share_code = $1 AND br.is_active`, code)
}

// BusinessesWithoutAssignment lists business accounts that hold no active assignment of raffleID.
func (r *Repository) BusinessesWithoutAssignment(ctx context.Context, raffleID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT u.id FROM users u
		WHERE u.role = 'business'
		AND NOT EXISTS (SELECT 1 FROM business_raffles br WHERE br.business_id = u.id AND br.raffle_id = $1 AND br.is_active)
		ORDER BY u.created_at`
	return r.queryIDs(ctx, q, raffleID)
}

// RafflesWithoutAssignment lists unarchived raffles still open at now that businessID is not assigned to.
func (r *Repository) RafflesWithoutAssignment(ctx context.Context, businessID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	const q = `SELECT r.id FROM raffles r
		WHERE NOT r.archived AND r.end_date > $2
		AND NOT EXISTS (SELECT 1 FROM business_raffles br WHERE br.raffle_id = r.id AND br.business_id = $1 AND br.is_active)
		ORDER BY r.start_date`
	return r.queryIDs(ctx, q, businessID, now)
}

func (r *Repository) queryIDs(ctx context.Context, q string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert stores one assignment. A second active assignment of the same pair is
// ErrAssignmentAlreadyExists; a share code collision is errShareCodeTaken.
func (r *Repository) Insert(ctx context.Context, br *models.BusinessRaffle) error {
	const q = `INSERT INTO business_raffles AS br (business_id, raffle_id, is_active, share_code, customization)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING ` + assignmentColumns
	row, err := scanAssignment(r.pool.QueryRow(ctx, q, br.BusinessID, br.RaffleID, br.ShareCode, br.Customization))
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, database.IndexBusinessRafflesActive):
			return apperror.ErrAssignmentAlreadyExists
		case database.IsUniqueViolation(err, database.IndexBusinessRafflesShareCode):
			return errShareCodeTaken
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	*br = *row
	return nil
}

// InsertMany inserts assignments in one batch. Rows that collide with an existing active
// assignment are skipped. Returns the number inserted.
func (r *Repository) InsertMany(ctx context.Context, rows []models.BusinessRaffle) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	const q = `INSERT INTO business_raffles (business_id, raffle_id, is_active, share_code, customization)
		VALUES ($1, $2, TRUE, $3, $4)
		ON CONFLICT DO NOTHING`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(q, row.BusinessID, row.RaffleID, row.ShareCode, row.Customization)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert assignment: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListForBusiness returns the business's active assignments joined with their raffles.
func (r *Repository) ListForBusiness(ctx context.Context, businessID uuid.UUID, includeArchived bool) ([]Listing, error) {
	q := `SELECT ` + assignmentColumns + `, ` + raffleJoinColumns + `
		FROM business_raffles br JOIN raffles r ON r.id = br.raffle_id
		WHERE br.business_id = $1 AND br.is_active`
	if !includeArchived {
		q += ` AND NOT r.archived`
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY r.start_date DESC`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	list := []Listing{}
	for rows.Next() {
		var l Listing
		br, rf := &l.Assignment, &l.Raffle
		if err := rows.Scan(&br.ID, &br.BusinessID, &br.RaffleID, &br.IsActive, &br.ShareCode, &br.Customization,
			&br.CreatedAt, &br.UpdatedAt,
			&rf.ID, &rf.Title, &rf.Description, &rf.StartDate, &rf.EndDate, &rf.PrizeImages, &rf.MainImageIndex,
			&rf.CoverImage, &rf.IsActive, &rf.Status, &rf.Archived, &rf.ArchivedAt, &rf.CreatedBy, &rf.CreatedAt,
			&rf.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// UpdateCustomization replaces the customization of an assignment.
func (r *Repository) UpdateCustomization(ctx context.Context, id uuid.UUID, c models.Customization) (*models.BusinessRaffle, error) {
	const q = `UPDATE business_raffles br SET customization = $1, updated_at = NOW()
		WHERE br.id = $2 AND br.is_active
		RETURNING ` + assignmentColumns
	br, err := scanAssignment(r.pool.QueryRow(ctx, q, c, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("update customization: %w", err)
	}
	return br, nil
}

// BusinessName returns the company (or full) name of a business account.
func (r *Repository) BusinessName(ctx context.Context, businessID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE(NULLIF(company_name, ''), full_name) FROM users WHERE id = $1 AND role = 'business'`
	var name string
	if err := r.pool.QueryRow(ctx, q, businessID).Scan(&name); err != nil {
		if database.IsNoRows(err) {
			return "", apperror.ErrBusinessNotFound
		}
		return "", fmt.Errorf("business name: %w", err)
	}
	return name, nil
}
