package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
	"github.com/omnitext/omnitext/internal/platform/messagebroker"
)

// StatusReconciler applies delivery-status webhooks to previously sent
// messages, idempotently and forward-only.
type StatusReconciler struct {
	providers   map[string]provider.Adapter
	messageRepo domain.MessageRepository
	broker      messagebroker.Publisher
	logger      *slog.Logger
}

// NewStatusReconciler creates a StatusReconciler.
func NewStatusReconciler(
	providers map[string]provider.Adapter,
	messageRepo domain.MessageRepository,
	broker messagebroker.Publisher,
	logger *slog.Logger,
) *StatusReconciler {
	return &StatusReconciler{
		providers:   providers,
		messageRepo: messageRepo,
		broker:      broker,
		logger:      logger.With("component", "status_reconciler"),
	}
}

type statusChangedEvent struct {
	ProviderName      string               `json:"provider_name"`
	ProviderMessageID string               `json:"provider_message_id"`
	NewStatus         domain.MessageStatus `json:"new_status"`
	RawStatus         string               `json:"raw_status"`
	ChangedAt         time.Time            `json:"changed_at"`
}

// Reconcile processes one delivery-status webhook.
//
// A status for a message this deployment does not track is accepted without
// side effects: the matching row may not be committed yet, or the traffic
// belongs to another deployment sharing the vendor account, and a hard
// failure would only trigger vendor retry storms. Vendors redeliver
// webhooks, so the store update is conditional on the current status; the
// forward-only rule makes concurrent or out-of-order deliveries converge.
func (s *StatusReconciler) Reconcile(ctx context.Context, providerName string, req *provider.WebhookRequest) error {
	adapter, ok := s.providers[providerName]
	if !ok {
		statusWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	update, err := adapter.ParseStatusPayload(req)
	if err != nil {
		statusWebhooksCounter.WithLabelValues(providerName, "malformed").Inc()
		s.logger.WarnContext(ctx, "malformed status webhook payload", "provider_name", providerName, "error", err)
		return err
	}

	msg, err := s.messageRepo.GetByProviderMessageID(ctx, providerName, update.ProviderMessageID)
	if err != nil {
		statusWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("message lookup failed: %w", err)
	}
	if msg == nil {
		statusWebhooksCounter.WithLabelValues(providerName, "unknown_message").Inc()
		statusUnknownMessageCounter.WithLabelValues(providerName).Inc()
		s.logger.WarnContext(ctx, "ignoring status for untracked message",
			"provider_name", providerName,
			"provider_message_id", update.ProviderMessageID,
			"raw_status", update.RawStatus,
		)
		return nil
	}

	applied, err := s.messageRepo.UpdateStatusIfForward(ctx, providerName, update.ProviderMessageID, update.NewStatus)
	if err != nil {
		statusWebhooksCounter.WithLabelValues(providerName, "error").Inc()
		return fmt.Errorf("status update failed: %w", err)
	}
	if !applied {
		statusWebhooksCounter.WithLabelValues(providerName, "stale").Inc()
		s.logger.InfoContext(ctx, "skipped non-forward status update",
			"message_id", msg.ID,
			"current_status", msg.Status,
			"reported_status", update.NewStatus,
			"raw_status", update.RawStatus,
		)
		return nil
	}

	statusWebhooksCounter.WithLabelValues(providerName, "applied").Inc()
	s.logger.InfoContext(ctx, "applied delivery status",
		"message_id", msg.ID,
		"provider_name", providerName,
		"provider_message_id", update.ProviderMessageID,
		"new_status", update.NewStatus,
	)

	s.publishChanged(ctx, providerName, update)
	return nil
}

func (s *StatusReconciler) publishChanged(ctx context.Context, providerName string, update *provider.StatusUpdate) {
	if s.broker == nil {
		return
	}
	event := statusChangedEvent{
		ProviderName:      providerName,
		ProviderMessageID: update.ProviderMessageID,
		NewStatus:         update.NewStatus,
		RawStatus:         update.RawStatus,
		ChangedAt:         time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal status event", "error", err)
		return
	}
	subject := fmt.Sprintf("sms.status.changed.%s", providerName)
	if err := s.broker.Publish(ctx, subject, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish status event", "error", err, "subject", subject)
	}
}
