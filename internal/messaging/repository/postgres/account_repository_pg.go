package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

// PgAccountRepository reads account administration data. Account rows are
// written by the account-management system outside this core.
type PgAccountRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgAccountRepository creates a PostgreSQL implementation of
// domain.AccountRepository.
func NewPgAccountRepository(db *pgxpool.Pool, logger *slog.Logger) *PgAccountRepository {
	return &PgAccountRepository{db: db, logger: logger}
}

func (r *PgAccountRepository) GetAccountAdmin(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	var adminID uuid.UUID
	query := `SELECT admin_user_id FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, err
	}
	return adminID, nil
}
