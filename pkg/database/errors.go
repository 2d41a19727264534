package database

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Unique index names referenced by repositories when translating violations.
const (
	IndexEntriesRaffleEmail        = "uq_entries_raffle_email"
	IndexWinnersRaffleEntry        = "uq_winners_raffle_entry"
	IndexWinnersAutomaticPerRaffle = "uq_winners_automatic_per_raffle"
	IndexBusinessRafflesActive     = "uq_business_raffles_active"
	IndexBusinessRafflesShareCode  = "uq_business_raffles_share_code"
	IndexUsersEmail                = "uq_users_email"
)

// IsUniqueViolation reports whether err is a unique violation, optionally of the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
