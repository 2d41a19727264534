package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
)

const userColumns = `id, email, password_hash, full_name, role, COALESCE(company_name, ''), created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.CompanyName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by (normalized) email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// List returns users, optionally only those with role.
func (r *Repository) List(ctx context.Context, role models.Role) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE $1 = '' OR role = $1 ORDER BY full_name, email`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u.ToPublic())
	}
	return list, rows.Err()
}

// Create inserts a new user. A taken email returns ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, full_name, role, company_name)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FullName, string(u.Role), u.CompanyName).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, database.IndexUsersEmail) {
			return apperror.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
