package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

type PgOwnedNumberRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgOwnedNumberRepository creates a PostgreSQL implementation of
// domain.OwnedNumberRepository.
func NewPgOwnedNumberRepository(db *pgxpool.Pool, logger *slog.Logger) *PgOwnedNumberRepository {
	return &PgOwnedNumberRepository{db: db, logger: logger}
}

const ownedNumberColumns = `
	id, account_id, phone_number, provider_name, provider_number_id,
	sms_capable, voice_capable, messaging_group_id, created_at`

func scanOwnedNumber(row pgx.Row) (*domain.OwnedNumber, error) {
	var num domain.OwnedNumber
	err := row.Scan(
		&num.ID, &num.AccountID, &num.PhoneNumber, &num.ProviderName,
		&num.ProviderNumberID, &num.Capabilities.SMS, &num.Capabilities.Voice,
		&num.MessagingGroupID, &num.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &num, nil
}

// Insert stores a purchased number. A unique index on phone_number enforces
// the one-account-per-number invariant.
func (r *PgOwnedNumberRepository) Insert(ctx context.Context, num *domain.OwnedNumber) error {
	query := `
		INSERT INTO owned_numbers (
			id, account_id, phone_number, provider_name, provider_number_id,
			sms_capable, voice_capable, messaging_group_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		num.ID, num.AccountID, num.PhoneNumber, num.ProviderName,
		num.ProviderNumberID, num.Capabilities.SMS, num.Capabilities.Voice,
		num.MessagingGroupID, num.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateEntry
		}
		return err
	}
	return nil
}

func (r *PgOwnedNumberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OwnedNumber, error) {
	query := `SELECT` + ownedNumberColumns + ` FROM owned_numbers WHERE id = $1`
	num, err := scanOwnedNumber(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return num, nil
}

// GetByNumber looks up ownership by pre-normalized E.164 number. Returns
// (nil, nil) when unowned; the inbound router drops such traffic silently.
func (r *PgOwnedNumberRepository) GetByNumber(ctx context.Context, e164 string) (*domain.OwnedNumber, error) {
	query := `SELECT` + ownedNumberColumns + ` FROM owned_numbers WHERE phone_number = $1`
	num, err := scanOwnedNumber(r.db.QueryRow(ctx, query, e164))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return num, nil
}

func (r *PgOwnedNumberRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.OwnedNumber, error) {
	query := `SELECT` + ownedNumberColumns + `
		FROM owned_numbers
		WHERE account_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []domain.OwnedNumber
	for rows.Next() {
		num, err := scanOwnedNumber(rows)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, *num)
	}
	return numbers, rows.Err()
}

// SetMessagingGroup records the messaging-group ID. Re-recording the same
// group is a no-op, which keeps attachment retries idempotent.
func (r *PgOwnedNumberRepository) SetMessagingGroup(ctx context.Context, id uuid.UUID, groupID string) error {
	query := `UPDATE owned_numbers SET messaging_group_id = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, groupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
