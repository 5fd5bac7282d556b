package domain

import (
	"context"

	"github.com/google/uuid"
)

// MessageRepository is the durable store for messages. All operations are
// safe to retry: inserts with a known provider message ID converge on
// ErrDuplicateEntry, and the status update is conditional.
type MessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// GetByProviderMessageID returns (nil, nil) when no message matches;
	// absence is an expected outcome for status webhooks, not an error.
	GetByProviderMessageID(ctx context.Context, providerName, providerMessageID string) (*Message, error)
	// UpdateStatusIfForward applies newStatus to the message identified by
	// (providerName, providerMessageID) only when the transition is
	// forward-moving, as a single conditional update at the store. It
	// returns whether the update was applied.
	UpdateStatusIfForward(ctx context.Context, providerName, providerMessageID string, newStatus MessageStatus) (bool, error)
	// MarkSent records the provider-assigned ID and moves queued -> sent.
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error
	// MarkFailed moves the message to failed with an error detail.
	MarkFailed(ctx context.Context, id uuid.UUID, detail string) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Message, error)
}

// OwnedNumberRepository is the durable store for purchased numbers.
// Lookups take pre-normalized E.164 input.
type OwnedNumberRepository interface {
	Insert(ctx context.Context, num *OwnedNumber) error
	GetByID(ctx context.Context, id uuid.UUID) (*OwnedNumber, error)
	// GetByNumber returns (nil, nil) when the number is not owned by any
	// account; inbound routing treats that as a silent drop.
	GetByNumber(ctx context.Context, e164 string) (*OwnedNumber, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]OwnedNumber, error)
	// SetMessagingGroup records the provider messaging-group ID once
	// attachment succeeds; idempotent.
	SetMessagingGroup(ctx context.Context, id uuid.UUID, groupID string) error
}

// AccountRepository resolves account administration; account lifecycle
// itself is managed outside this core.
type AccountRepository interface {
	// GetAccountAdmin returns the admin identifier for the account, or
	// ErrNotFound if the account does not exist.
	GetAccountAdmin(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error)
}
