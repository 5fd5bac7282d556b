package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageDirection distinguishes inbound from outbound messages.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "in"
	DirectionOutbound MessageDirection = "out"
)

// MessageStatus defines the delivery states of a message.
//
// Outbound messages move strictly forward: queued -> sent -> delivered, or
// to failed from queued/sent. Inbound messages are created as received and
// never transition. Rank encodes the forward ordering; reconciliation
// rejects any update that would lower the rank.
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusReceived  MessageStatus = "received"
)

// Rank returns the position of the status in the forward ordering.
// Terminal statuses (failed, received) rank above everything so nothing
// can overwrite them.
func (ms MessageStatus) Rank() int {
	switch ms {
	case MessageStatusQueued:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusFailed, MessageStatusReceived:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from ms to next is a forward
// transition. Equal statuses are not a transition (duplicate webhook).
func (ms MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if ms == MessageStatusReceived || ms == MessageStatusFailed || ms == MessageStatusDelivered {
		return false
	}
	return next.Rank() > ms.Rank()
}

// Value implements driver.Valuer for MessageStatus.
func (ms MessageStatus) Value() (driver.Value, error) {
	return string(ms), nil
}

// Scan implements sql.Scanner for MessageStatus.
func (ms *MessageStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan MessageStatus: value is %T, not string or []byte", value)
		}
		strVal = string(bytesVal)
	}
	*ms = MessageStatus(strVal)
	switch *ms {
	case MessageStatusQueued, MessageStatusSent, MessageStatusDelivered, MessageStatusFailed, MessageStatusReceived:
		return nil
	default:
		return fmt.Errorf("unknown MessageStatus value: %s", strVal)
	}
}

// Message is a single SMS, inbound or outbound, normalized across vendors.
//
// (ProviderName, ProviderMessageID) is unique once the provider identifier
// is known; until then the message is referenced only by its local ID.
// Rows are never deleted by this core.
type Message struct {
	ID                uuid.UUID        `json:"id"`
	AccountID         uuid.UUID        `json:"account_id"`
	ProviderName      string           `json:"provider_name"`
	Direction         MessageDirection `json:"direction"`
	FromNumber        string           `json:"from_number"` // E.164
	ToNumber          string           `json:"to_number"`   // E.164
	Body              string           `json:"body"`
	Status            MessageStatus    `json:"status"`
	ProviderMessageID *string          `json:"provider_message_id,omitempty"`
	ErrorDetail       *string          `json:"error_detail,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NumberCapabilities flags what an owned or candidate number supports.
type NumberCapabilities struct {
	SMS   bool `json:"sms"`
	Voice bool `json:"voice"`
}

// OwnedNumber is a phone number purchased from a provider and attached to
// an account. A number maps to at most one account at a time. The row is
// written durably right after purchase, before messaging-group attachment,
// so a paid-for number is never lost to a crash mid-provisioning.
type OwnedNumber struct {
	ID                uuid.UUID          `json:"id"`
	AccountID         uuid.UUID          `json:"account_id"`
	PhoneNumber       string             `json:"phone_number"` // E.164
	ProviderName      string             `json:"provider_name"`
	ProviderNumberID  string             `json:"provider_number_id"`
	Capabilities      NumberCapabilities `json:"capabilities"`
	MessagingGroupID  *string            `json:"messaging_group_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Attached reports whether the number has completed messaging-group
// attachment (or the vendor has no such concept and it was a no-op).
func (n *OwnedNumber) Attached() bool {
	return n.MessagingGroupID != nil && *n.MessagingGroupID != ""
}

// ProviderRequiresMessagingGroup reports whether the vendor needs
// messaging-group attachment before a purchased number can send.
func ProviderRequiresMessagingGroup(providerName string) bool {
	return providerName == "telnyx"
}

// Usable reports whether the number can serve as an outbound sender.
func (n *OwnedNumber) Usable() bool {
	if !n.Capabilities.SMS {
		return false
	}
	if ProviderRequiresMessagingGroup(n.ProviderName) && !n.Attached() {
		return false
	}
	return true
}

// AvailableNumberCandidate is a provider-sourced number available for
// purchase. It is never persisted; the availability ID may expire
// server-side between search and purchase.
type AvailableNumberCandidate struct {
	PhoneNumber    string             `json:"phone_number"` // E.164
	AvailabilityID string             `json:"availability_id"`
	Region         string             `json:"region"`
	Capabilities   NumberCapabilities `json:"capabilities"`
}

// NumberSearchCriteria filters a provider number search.
type NumberSearchCriteria struct {
	Country      string `json:"country"`           // ISO 3166-1 alpha-2, e.g. "US"
	LineType     string `json:"line_type"`         // "local", "toll_free", "mobile"
	Prefix       string `json:"prefix,omitempty"`  // area/exchange prefix, e.g. "415"
	SMSOnly      bool   `json:"sms_only"`
	Limit        int    `json:"limit"`
	Page         int    `json:"page"`
}
