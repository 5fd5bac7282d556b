package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
	"github.com/omnitext/omnitext/internal/phone"
)

// SendService handles the outbound path: normalize the destination, pick
// the account's sender number, submit through the matching adapter and keep
// the message record in step with the outcome.
type SendService struct {
	providers   map[string]provider.Adapter
	messageRepo domain.MessageRepository
	numberRepo  domain.OwnedNumberRepository
	logger      *slog.Logger
}

// NewSendService creates a SendService.
func NewSendService(
	providers map[string]provider.Adapter,
	messageRepo domain.MessageRepository,
	numberRepo domain.OwnedNumberRepository,
	logger *slog.Logger,
) *SendService {
	return &SendService{
		providers:   providers,
		messageRepo: messageRepo,
		numberRepo:  numberRepo,
		logger:      logger.With("component", "send_service"),
	}
}

// Send submits one outbound message for the account. The message row is
// persisted as queued before the provider call, then moved to sent (with
// the provider-assigned ID) or failed. Provider rejections and transport
// faults are surfaced to the caller, never swallowed.
func (s *SendService) Send(ctx context.Context, accountID uuid.UUID, to, body string) (*domain.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: empty message body", domain.ErrInvalidInput)
	}
	dest, err := phone.Normalize(to, phone.DefaultRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: destination %q is not a valid phone number", domain.ErrInvalidInput, to)
	}

	sender, err := s.pickSenderNumber(ctx, accountID)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.providers[sender.ProviderName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, sender.ProviderName)
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:           uuid.New(),
		AccountID:    accountID,
		ProviderName: sender.ProviderName,
		Direction:    domain.DirectionOutbound,
		FromNumber:   sender.PhoneNumber,
		ToNumber:     dest,
		Body:         body,
		Status:       domain.MessageStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.messageRepo.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record outbound message: %w", err)
	}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(sender.ProviderName, "send"))
	providerMessageID, sendErr := adapter.SendMessage(ctx, sender.PhoneNumber, dest, body)
	timer.ObserveDuration()

	if sendErr != nil {
		detail := sendErr.Error()
		if markErr := s.messageRepo.MarkFailed(ctx, msg.ID, detail); markErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark message failed", "error", markErr, "message_id", msg.ID)
		}
		msg.Status = domain.MessageStatusFailed
		msg.ErrorDetail = &detail

		if domain.IsSendRejected(sendErr) {
			messagesSentCounter.WithLabelValues(sender.ProviderName, "rejected").Inc()
			s.logger.WarnContext(ctx, "provider rejected outbound message",
				"message_id", msg.ID, "provider_name", sender.ProviderName, "reason", detail)
		} else {
			messagesSentCounter.WithLabelValues(sender.ProviderName, "provider_unavailable").Inc()
			s.logger.ErrorContext(ctx, "provider send failed",
				"error", sendErr, "message_id", msg.ID, "provider_name", sender.ProviderName)
		}
		return msg, sendErr
	}

	if err := s.messageRepo.MarkSent(ctx, msg.ID, providerMessageID); err != nil {
		// The provider accepted the message; losing the sent transition
		// only delays reconciliation, which will match on the provider ID
		// once a status webhook arrives.
		s.logger.ErrorContext(ctx, "failed to mark message sent", "error", err, "message_id", msg.ID)
	} else {
		msg.Status = domain.MessageStatusSent
		msg.ProviderMessageID = &providerMessageID
	}

	messagesSentCounter.WithLabelValues(sender.ProviderName, "sent").Inc()
	s.logger.InfoContext(ctx, "submitted outbound message",
		"message_id", msg.ID,
		"provider_name", sender.ProviderName,
		"provider_message_id", providerMessageID,
	)
	return msg, nil
}

// ListMessages returns the account's messages, newest first.
func (s *SendService) ListMessages(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messageRepo.ListByAccount(ctx, accountID, limit, offset)
}

// pickSenderNumber selects the account's first SMS-capable number whose
// provisioning is complete. Numbers still awaiting messaging-group
// attachment are skipped for vendors that require it.
func (s *SendService) pickSenderNumber(ctx context.Context, accountID uuid.UUID) (*domain.OwnedNumber, error) {
	numbers, err := s.numberRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned numbers: %w", err)
	}
	for i := range numbers {
		if numbers[i].Usable() {
			return &numbers[i], nil
		}
	}
	return nil, domain.ErrNoSenderNumber
}
