package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

// MockProvider is an in-memory adapter for tests and local development.
// Failure modes are toggled per capability.
type MockProvider struct {
	logger *slog.Logger

	FailSearch   bool
	FailPurchase bool
	FailAttach   bool
	FailSend     bool
	RejectSend   bool

	sendCounter atomic.Int64
}

// NewMockProvider creates a mock adapter that succeeds at everything.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger.With("provider", "mock")}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) SearchAvailableNumbers(ctx context.Context, criteria domain.NumberSearchCriteria) ([]domain.AvailableNumberCandidate, error) {
	if p.FailSearch {
		return nil, fmt.Errorf("%w: mock search failure", domain.ErrProviderUnavailable)
	}
	prefix := criteria.Prefix
	if prefix == "" {
		prefix = "555"
	}
	limit := criteria.Limit
	if limit <= 0 || limit > 10 {
		limit = 3
	}
	candidates := make([]domain.AvailableNumberCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		number := fmt.Sprintf("+1%s555%04d", prefix, i)
		candidates = append(candidates, domain.AvailableNumberCandidate{
			PhoneNumber:    number,
			AvailabilityID: "avail-" + number,
			Region:         "CA",
			Capabilities:   domain.NumberCapabilities{SMS: true, Voice: true},
		})
	}
	return candidates, nil
}

func (p *MockProvider) PurchaseNumber(ctx context.Context, candidate domain.AvailableNumberCandidate) (*domain.OwnedNumber, error) {
	if p.FailPurchase {
		return nil, fmt.Errorf("%w: mock candidate expired", domain.ErrNumberUnavailable)
	}
	return &domain.OwnedNumber{
		ID:               uuid.New(),
		PhoneNumber:      candidate.PhoneNumber,
		ProviderName:     p.Name(),
		ProviderNumberID: "mocknum-" + candidate.PhoneNumber,
		Capabilities:     candidate.Capabilities,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (p *MockProvider) AttachToMessagingGroup(ctx context.Context, num *domain.OwnedNumber) (string, error) {
	if p.FailAttach {
		return "", fmt.Errorf("%w: mock attach failure", domain.ErrProviderUnavailable)
	}
	return "mock-group", nil
}

func (p *MockProvider) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	if p.FailSend {
		return "", fmt.Errorf("%w: mock send failure", domain.ErrProviderUnavailable)
	}
	if p.RejectSend {
		return "", &domain.SendRejectedError{Reason: "mock rejection"}
	}
	id := fmt.Sprintf("mockmsg-%d", p.sendCounter.Add(1))
	p.logger.InfoContext(ctx, "mock send", "from", from, "to", to, "provider_message_id", id)
	return id, nil
}

func (p *MockProvider) VerifyInboundSignature(req *WebhookRequest) bool {
	return req.Header.Get("X-Mock-Signature") != "invalid"
}

func (p *MockProvider) ParseInboundPayload(req *WebhookRequest) (*InboundMessage, error) {
	from := req.Form.Get("from")
	to := req.Form.Get("to")
	id := req.Form.Get("message_id")
	if from == "" || to == "" || id == "" {
		return nil, fmt.Errorf("%w: missing from, to or message_id", domain.ErrMalformedPayload)
	}
	return &InboundMessage{From: from, To: to, Body: req.Form.Get("body"), ProviderMessageID: id}, nil
}

func (p *MockProvider) ParseStatusPayload(req *WebhookRequest) (*StatusUpdate, error) {
	id := req.Form.Get("message_id")
	rawStatus := req.Form.Get("status")
	if id == "" || rawStatus == "" {
		return nil, fmt.Errorf("%w: missing message_id or status", domain.ErrMalformedPayload)
	}
	return &StatusUpdate{
		ProviderMessageID: id,
		NewStatus:         mapDeliveryStatus(rawStatus),
		RawStatus:         rawStatus,
	}, nil
}
