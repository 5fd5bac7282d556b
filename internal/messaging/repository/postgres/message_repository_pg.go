package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

type PgMessageRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgMessageRepository creates a PostgreSQL implementation of
// domain.MessageRepository.
func NewPgMessageRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{db: db, logger: logger}
}

const messageColumns = `
	id, account_id, provider_name, direction, from_number, to_number, body,
	status, provider_message_id, error_detail, created_at, updated_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.AccountID, &msg.ProviderName, &msg.Direction,
		&msg.FromNumber, &msg.ToNumber, &msg.Body,
		&msg.Status, &msg.ProviderMessageID, &msg.ErrorDetail,
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Insert stores a new message. A unique index on
// (provider_name, provider_message_id) enforces the at-most-once invariant
// for provider-identified rows; violations surface as ErrDuplicateEntry.
func (r *PgMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			id, account_id, provider_name, direction, from_number, to_number, body,
			status, provider_message_id, error_detail, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.AccountID, msg.ProviderName, msg.Direction,
		msg.FromNumber, msg.ToNumber, msg.Body,
		msg.Status, msg.ProviderMessageID, msg.ErrorDetail,
		msg.CreatedAt, msg.UpdatedAt,
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

func (r *PgMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

// GetByProviderMessageID returns (nil, nil) when no row matches; status
// webhooks for untracked messages are an expected case.
func (r *PgMessageRepository) GetByProviderMessageID(ctx context.Context, providerName, providerMessageID string) (*domain.Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE provider_name = $1 AND provider_message_id = $2`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, providerName, providerMessageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// UpdateStatusIfForward applies the status only when forward-moving, as a
// single conditional UPDATE so concurrent webhook deliveries converge
// without locking. The rank CASE mirrors domain.MessageStatus.Rank.
func (r *PgMessageRepository) UpdateStatusIfForward(ctx context.Context, providerName, providerMessageID string, newStatus domain.MessageStatus) (bool, error) {
	query := `
		UPDATE messages
		SET status = $3, updated_at = $4
		WHERE provider_name = $1 AND provider_message_id = $2
		  AND status IN ('queued', 'sent')
		  AND (CASE status WHEN 'queued' THEN 0 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 ELSE 3 END)
		    < (CASE $3::text WHEN 'queued' THEN 0 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 ELSE 3 END)`

	tag, err := r.db.Exec(ctx, query, providerName, providerMessageID, newStatus, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSent records the provider ID and moves queued -> sent. The status
// guard keeps a slow send response from clobbering a delivery report that
// already arrived.
func (r *PgMessageRepository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	query := `
		UPDATE messages
		SET provider_message_id = $2,
		    status = CASE WHEN status = 'queued' THEN 'sent' ELSE status END,
		    updated_at = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, providerMessageID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgMessageRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail string) error {
	query := `
		UPDATE messages
		SET status = 'failed', error_detail = $2, updated_at = $3
		WHERE id = $1 AND status IN ('queued', 'sent')`

	tag, err := r.db.Exec(ctx, query, id, detail, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgMessageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
