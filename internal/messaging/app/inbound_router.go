package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
	"github.com/omnitext/omnitext/internal/phone"
	"github.com/omnitext/omnitext/internal/platform/messagebroker"
)

var (
	// ErrUnknownProvider indicates a webhook for a vendor this deployment
	// has no adapter for.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrSignatureInvalid indicates webhook signature verification failed.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)

// InboundRouter receives provider message webhooks, authenticates them,
// resolves the owning account through the destination number and records a
// normalized inbound message.
type InboundRouter struct {
	providers   map[string]provider.Adapter
	numberRepo  domain.OwnedNumberRepository
	messageRepo domain.MessageRepository
	broker      messagebroker.Publisher
	logger      *slog.Logger
}

// NewInboundRouter creates an InboundRouter.
func NewInboundRouter(
	providers map[string]provider.Adapter,
	numberRepo domain.OwnedNumberRepository,
	messageRepo domain.MessageRepository,
	broker messagebroker.Publisher,
	logger *slog.Logger,
) *InboundRouter {
	return &InboundRouter{
		providers:   providers,
		numberRepo:  numberRepo,
		messageRepo: messageRepo,
		broker:      broker,
		logger:      logger.With("component", "inbound_router"),
	}
}

// inboundReceivedEvent is the NATS payload published after a message is
// recorded.
type inboundReceivedEvent struct {
	MessageID         uuid.UUID `json:"message_id"`
	AccountID         uuid.UUID `json:"account_id"`
	ProviderName      string    `json:"provider_name"`
	ProviderMessageID string    `json:"provider_message_id"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	ReceivedAt        time.Time `json:"received_at"`
}

// HandleInbound processes one inbound-message webhook.
//
// A webhook addressed to a number no account owns is accepted silently with
// no record created: the number may have been ported away, or the traffic
// is a probe, and failing would leak ownership information. Signature
// failure returns ErrSignatureInvalid; malformed payloads return
// domain.ErrMalformedPayload; both are mapped by the transport layer.
func (r *InboundRouter) HandleInbound(ctx context.Context, providerName string, req *provider.WebhookRequest) error {
	adapter, ok := r.providers[providerName]
	if !ok {
		inboundWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if !adapter.VerifyInboundSignature(req) {
		inboundWebhooksCounter.WithLabelValues(providerName, "rejected_signature").Inc()
		r.logger.WarnContext(ctx, "rejected inbound webhook with invalid signature", "provider_name", providerName)
		return ErrSignatureInvalid
	}

	parsed, err := adapter.ParseInboundPayload(req)
	if err != nil {
		inboundWebhooksCounter.WithLabelValues(providerName, "malformed").Inc()
		r.logger.WarnContext(ctx, "malformed inbound webhook payload", "provider_name", providerName, "error", err)
		return err
	}

	from, err := phone.Normalize(parsed.From, phone.DefaultRegion)
	if err != nil {
		inboundWebhooksCounter.WithLabelValues(providerName, "malformed").Inc()
		return fmt.Errorf("%w: unparseable from number %q", domain.ErrMalformedPayload, parsed.From)
	}
	to, err := phone.Normalize(parsed.To, phone.DefaultRegion)
	if err != nil {
		inboundWebhooksCounter.WithLabelValues(providerName, "malformed").Inc()
		return fmt.Errorf("%w: unparseable to number %q", domain.ErrMalformedPayload, parsed.To)
	}

	owned, err := r.numberRepo.GetByNumber(ctx, to)
	if err != nil {
		inboundWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("owned number lookup failed: %w", err)
	}
	if owned == nil {
		inboundWebhooksCounter.WithLabelValues(providerName, "dropped_unknown_number").Inc()
		r.logger.InfoContext(ctx, "dropping inbound message for unowned number",
			"provider_name", providerName, "to", to)
		return nil
	}

	providerMessageID := parsed.ProviderMessageID
	now := time.Now().UTC()
	msg := &domain.Message{
		ID:                uuid.New(),
		AccountID:         owned.AccountID,
		ProviderName:      providerName,
		Direction:         domain.DirectionInbound,
		FromNumber:        from,
		ToNumber:          to,
		Body:              parsed.Body,
		Status:            domain.MessageStatusReceived,
		ProviderMessageID: &providerMessageID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := r.messageRepo.Insert(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			// Redelivered webhook; the message is already recorded.
			inboundWebhooksCounter.WithLabelValues(providerName, "recorded").Inc()
			r.logger.InfoContext(ctx, "inbound message already recorded",
				"provider_name", providerName, "provider_message_id", providerMessageID)
			return nil
		}
		inboundWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("failed to record inbound message: %w", err)
	}

	inboundWebhooksCounter.WithLabelValues(providerName, "recorded").Inc()
	r.logger.InfoContext(ctx, "recorded inbound message",
		"message_id", msg.ID,
		"account_id", owned.AccountID,
		"provider_name", providerName,
		"provider_message_id", providerMessageID,
	)

	r.publishReceived(ctx, msg)
	return nil
}

// publishReceived emits the domain event. Publish failures are logged and
// swallowed: the message is already durable and the webhook must still be
// acknowledged.
func (r *InboundRouter) publishReceived(ctx context.Context, msg *domain.Message) {
	if r.broker == nil {
		return
	}
	event := inboundReceivedEvent{
		MessageID:         msg.ID,
		AccountID:         msg.AccountID,
		ProviderName:      msg.ProviderName,
		ProviderMessageID: *msg.ProviderMessageID,
		From:              msg.FromNumber,
		To:                msg.ToNumber,
		ReceivedAt:        msg.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal inbound event", "error", err, "message_id", msg.ID)
		return
	}
	subject := fmt.Sprintf("sms.inbound.received.%s", msg.ProviderName)
	if err := r.broker.Publish(ctx, subject, data); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish inbound event", "error", err, "subject", subject, "message_id", msg.ID)
	}
}
