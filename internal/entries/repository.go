package entries

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
)

const entryColumns = `e.id, e.business_id, e.raffle_id, e.first_name, e.last_name, e.email, COALESCE(e.phone, ''), e.answers,
	e.agreed_to_terms, e.marketing_consent, COALESCE(e.ip_address, ''), e.created_at`

// Repository handles entry persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an entry repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEntry(row pgx.Row, extra ...interface{}) (*models.Entry, error) {
	var e models.Entry
	dest := []interface{}{&e.ID, &e.BusinessID, &e.RaffleID, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.Answers,
		&e.AgreedToTerms, &e.MarketingConsent, &e.IPAddress, &e.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &e, nil
}

// ExistsByEmail reports whether email already entered raffleID. email must be normalized.
func (r *Repository) ExistsByEmail(ctx context.Context, raffleID uuid.UUID, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entries WHERE raffle_id = $1 AND email = $2)`, raffleID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	return exists, nil
}

// Create inserts an entry. A concurrent duplicate surfaces as ErrDuplicateEntry.
func (r *Repository) Create(ctx context.Context, e *models.Entry) error {
	const q = `INSERT INTO entries (business_id, raffle_id, first_name, last_name, email, phone, answers, agreed_to_terms, marketing_consent, ip_address)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''))
		RETURNING id, created_at`
	answers := e.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	err := r.pool.QueryRow(ctx, q, e.BusinessID, e.RaffleID, e.FirstName, e.LastName, e.Email, e.Phone, answers,
		e.AgreedToTerms, e.MarketingConsent, e.IPAddress).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, database.IndexEntriesRaffleEmail) {
			return apperror.ErrDuplicateEntry
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetByID returns an entry by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries e WHERE e.id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// CountByRaffle returns the number of entries in a raffle, optionally for one business.
func (r *Repository) CountByRaffle(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) (int, error) {
	q := `SELECT COUNT(*) FROM entries WHERE raffle_id = $1`
	args := []interface{}{raffleID}
	if businessID != nil {
		q += ` AND business_id = $2`
		args = append(args, *businessID)
	}
	var n int
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// ListEligible returns entries that agreed to the terms, oldest first.
func (r *Repository) ListEligible(ctx context.Context, raffleID uuid.UUID) ([]models.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM entries e
		WHERE e.raffle_id = $1 AND e.agreed_to_terms ORDER BY e.created_at, e.id`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list eligible entries: %w", err)
	}
	defer rows.Close()
	list := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// CountByBusiness groups a raffle's entries per business, largest first. businessID narrows
// the result to one business.
func (r *Repository) CountByBusiness(ctx context.Context, raffleID uuid.UUID, businessID *uuid.UUID) ([]models.BusinessEntryCount, error) {
	const q = `SELECT e.business_id, COALESCE(NULLIF(u.company_name, ''), u.full_name, ''),
		COUNT(*), COUNT(*) FILTER (WHERE e.marketing_consent)
		FROM entries e
		LEFT JOIN users u ON u.id = e.business_id
		WHERE e.raffle_id = $1 AND ($2::uuid IS NULL OR e.business_id = $2)
		GROUP BY e.business_id, u.company_name, u.full_name
		ORDER BY COUNT(*) DESC, e.business_id`
	rows, err := r.pool.Query(ctx, q, raffleID, businessID)
	if err != nil {
		return nil, fmt.Errorf("count entries by business: %w", err)
	}
	defer rows.Close()
	list := []models.BusinessEntryCount{}
	for rows.Next() {
		var c models.BusinessEntryCount
		if err := rows.Scan(&c.BusinessID, &c.BusinessName, &c.Entries, &c.MarketingConsent); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func filterClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.RaffleID != nil {
		args = append(args, *f.RaffleID)
		conds = append(conds, "e.raffle_id = $"+strconv.Itoa(len(args)))
	}
	if f.BusinessID != nil {
		args = append(args, *f.BusinessID)
		conds = append(conds, "e.business_id = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Entry, error) {
	where, args := filterClause(f)
	q := `SELECT ` + entryColumns + ` FROM entries e` + where + ` ORDER BY e.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	list := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// ExportRows returns entries joined with raffle title and business name for CSV export.
// Entries of deleted raffles keep an empty title.
func (r *Repository) ExportRows(ctx context.Context, f Filter) ([]models.EntryExportRow, error) {
	where, args := filterClause(f)
	q := `SELECT ` + entryColumns + `, COALESCE(r.title, ''), COALESCE(NULLIF(u.company_name, ''), u.full_name, '')
		FROM entries e
		LEFT JOIN raffles r ON r.id = e.raffle_id
		LEFT JOIN users u ON u.id = e.business_id` + where + ` ORDER BY e.created_at`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("export entries: %w", err)
	}
	defer rows.Close()
	list := []models.EntryExportRow{}
	for rows.Next() {
		var row models.EntryExportRow
		e, err := scanEntry(rows, &row.RaffleTitle, &row.BusinessName)
		if err != nil {
			return nil, err
		}
		row.Entry = *e
		list = append(list, row)
	}
	return list, rows.Err()
}
