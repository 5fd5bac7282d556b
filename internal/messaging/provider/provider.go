// Package provider contains the vendor adapters. Each adapter exposes the
// same capability set so the rest of the system never branches on vendor;
// vendor quirks (signing schemes, payload encodings, messaging groups) stay
// behind this boundary.
package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

// WebhookRequest is the transport-agnostic view of an inbound provider
// callback. Handlers capture the raw body before form parsing so signature
// recomputation sees exactly what the vendor signed.
type WebhookRequest struct {
	// URL is the full public URL the vendor called, scheme included.
	URL    string
	Header http.Header
	Body   []byte
	// Form holds the parsed POST parameters for form-encoded vendors; nil
	// for JSON vendors.
	Form url.Values
}

// InboundMessage is a parsed inbound-message webhook payload.
type InboundMessage struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
}

// StatusUpdate is a parsed delivery-status webhook payload. RawStatus keeps
// the vendor's original vocabulary for logging; NewStatus is the mapped
// local status.
type StatusUpdate struct {
	ProviderMessageID string
	NewStatus         domain.MessageStatus
	RawStatus         string
}

// Adapter is the uniform capability set every vendor integration satisfies.
type Adapter interface {
	Name() string

	// SearchAvailableNumbers returns purchasable candidates matching the
	// criteria. Fails with domain.ErrInvalidCriteria on a vendor-rejected
	// filter combination and domain.ErrProviderUnavailable on transport
	// errors.
	SearchAvailableNumbers(ctx context.Context, criteria domain.NumberSearchCriteria) ([]domain.AvailableNumberCandidate, error)

	// PurchaseNumber buys the candidate. The returned OwnedNumber carries
	// no account association yet. Fails with domain.ErrNumberUnavailable
	// when the candidate expired server-side.
	PurchaseNumber(ctx context.Context, candidate domain.AvailableNumberCandidate) (*domain.OwnedNumber, error)

	// AttachToMessagingGroup performs any vendor-required step before the
	// number can send. Returns the messaging-group ID, or "" for vendors
	// without the concept. Idempotent: attaching an already-attached
	// number succeeds.
	AttachToMessagingGroup(ctx context.Context, num *domain.OwnedNumber) (string, error)

	// SendMessage submits an outbound SMS and returns the provider-assigned
	// message ID. Fails with *domain.SendRejectedError on vendor-side
	// validation failure.
	SendMessage(ctx context.Context, from, to, body string) (string, error)

	// VerifyInboundSignature recomputes and constant-time-compares the
	// request signature for signing vendors. Vendors without request
	// signing return true; deployments restrict their webhook sources by
	// network policy instead.
	VerifyInboundSignature(req *WebhookRequest) bool

	// ParseInboundPayload extracts an inbound message from the webhook.
	// Fails with domain.ErrMalformedPayload when required fields are absent.
	ParseInboundPayload(req *WebhookRequest) (*InboundMessage, error)

	// ParseStatusPayload extracts a delivery-status update. Unknown vendor
	// status strings map to failed rather than erroring; status vocabularies
	// are not contractual.
	ParseStatusPayload(req *WebhookRequest) (*StatusUpdate, error)
}

// mapDeliveryStatus translates a vendor status string into the local enum.
// A vendor "queued"/"accepted" maps to sent: any status callback proves the
// provider accepted the message. Unknown strings map to failed so the
// reconciler stays forward-compatible with vocabulary drift.
func mapDeliveryStatus(raw string) domain.MessageStatus {
	switch raw {
	case "queued", "accepted", "sending", "sent":
		return domain.MessageStatusSent
	case "delivered", "delivery_confirmed":
		return domain.MessageStatusDelivered
	default:
		return domain.MessageStatusFailed
	}
}
