package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
)

// ProvisioningService orchestrates number search, purchase and
// attachment-to-account across the external provider and the store.
//
// Ordering is deliberate: the purchase is an irreversible external side
// effect (money spent), so the OwnedNumber row is persisted immediately
// after purchase and before messaging-group attachment. A crash or attach
// failure leaves a discoverable, retryable record instead of an orphaned
// paid-for number.
type ProvisioningService struct {
	providers   map[string]provider.Adapter
	numberRepo  domain.OwnedNumberRepository
	accountRepo domain.AccountRepository
	logger      *slog.Logger
}

// NewProvisioningService creates a ProvisioningService.
func NewProvisioningService(
	providers map[string]provider.Adapter,
	numberRepo domain.OwnedNumberRepository,
	accountRepo domain.AccountRepository,
	logger *slog.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		providers:   providers,
		numberRepo:  numberRepo,
		accountRepo: accountRepo,
		logger:      logger.With("component", "provisioning"),
	}
}

// authorizeAdmin verifies the caller is the account's designated admin.
func (s *ProvisioningService) authorizeAdmin(ctx context.Context, callerID, accountID uuid.UUID) error {
	adminID, err := s.accountRepo.GetAccountAdmin(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to resolve account admin: %w", err)
	}
	if adminID != callerID {
		s.logger.WarnContext(ctx, "provisioning denied for non-admin caller",
			"caller_id", callerID, "account_id", accountID)
		return domain.ErrForbidden
	}
	return nil
}

func (s *ProvisioningService) adapter(providerName string) (provider.Adapter, error) {
	adapter, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	return adapter, nil
}

// SearchNumbers returns purchasable candidates from the named provider.
func (s *ProvisioningService) SearchNumbers(ctx context.Context, callerID, accountID uuid.UUID, providerName string, criteria domain.NumberSearchCriteria) ([]domain.AvailableNumberCandidate, error) {
	if err := s.authorizeAdmin(ctx, callerID, accountID); err != nil {
		return nil, err
	}
	adapter, err := s.adapter(providerName)
	if err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(providerName, "search"))
	candidates, err := adapter.SearchAvailableNumbers(ctx, criteria)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "number search completed",
		"provider_name", providerName, "account_id", accountID, "candidates", len(candidates))
	return candidates, nil
}

// PurchaseNumber runs the provisioning sequence for the selected candidate:
// authorize, double-purchase guard, purchase, persist, attach.
//
// Attachment failure is a partial success, not an error: the returned
// OwnedNumber has no messaging-group ID and the caller retries attachment
// through RetryAttachment. The race window between guard and purchase can
// still yield at most one extra purchase; purchases are low-frequency and
// operator-visible, so that is reconciled manually rather than with
// distributed locking.
func (s *ProvisioningService) PurchaseNumber(ctx context.Context, callerID, accountID uuid.UUID, providerName string, candidate domain.AvailableNumberCandidate) (*domain.OwnedNumber, error) {
	if err := s.authorizeAdmin(ctx, callerID, accountID); err != nil {
		return nil, err
	}
	adapter, err := s.adapter(providerName)
	if err != nil {
		return nil, err
	}

	existing, err := s.numberRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing numbers: %w", err)
	}
	for i := range existing {
		if existing[i].ProviderName == providerName && existing[i].Capabilities.SMS {
			return nil, domain.ErrNumberAlreadyProvisioned
		}
	}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(providerName, "purchase"))
	num, err := adapter.PurchaseNumber(ctx, candidate)
	timer.ObserveDuration()
	if err != nil {
		provisioningOutcomeCounter.WithLabelValues(providerName, outcomeForPurchaseError(err)).Inc()
		return nil, err
	}

	num.AccountID = accountID
	if err := s.numberRepo.Insert(ctx, num); err != nil {
		// The number is bought but the record failed; surface loudly so
		// reconciliation tooling can recover the paid-for resource.
		provisioningOutcomeCounter.WithLabelValues(providerName, "error").Inc()
		s.logger.ErrorContext(ctx, "purchased number could not be persisted",
			"error", err,
			"provider_name", providerName,
			"provider_number_id", num.ProviderNumberID,
			"phone_number", num.PhoneNumber,
		)
		return nil, fmt.Errorf("number purchased but not recorded (provider_number_id=%s): %w", num.ProviderNumberID, err)
	}

	s.logger.InfoContext(ctx, "purchased and recorded number",
		"owned_number_id", num.ID,
		"account_id", accountID,
		"provider_name", providerName,
		"phone_number", num.PhoneNumber,
	)

	if err := s.attach(ctx, adapter, num); err != nil {
		provisioningOutcomeCounter.WithLabelValues(providerName, "attach_pending").Inc()
		s.logger.WarnContext(ctx, "number purchased but messaging-group attachment pending",
			"error", err, "owned_number_id", num.ID)
		return num, nil
	}

	provisioningOutcomeCounter.WithLabelValues(providerName, "purchased").Inc()
	return num, nil
}

// RetryAttachment re-runs the idempotent messaging-group attachment for a
// partially provisioned number.
func (s *ProvisioningService) RetryAttachment(ctx context.Context, callerID, numberID uuid.UUID) (*domain.OwnedNumber, error) {
	num, err := s.numberRepo.GetByID(ctx, numberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned number: %w", err)
	}
	if num == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.authorizeAdmin(ctx, callerID, num.AccountID); err != nil {
		return nil, err
	}
	if num.Attached() {
		return num, nil
	}

	adapter, err := s.adapter(num.ProviderName)
	if err != nil {
		return nil, err
	}
	if err := s.attach(ctx, adapter, num); err != nil {
		return nil, err
	}
	return num, nil
}

// ListNumbers returns the account's owned numbers.
func (s *ProvisioningService) ListNumbers(ctx context.Context, accountID uuid.UUID) ([]domain.OwnedNumber, error) {
	return s.numberRepo.ListByAccount(ctx, accountID)
}

// attach performs the vendor attachment and records the group ID. A vendor
// without the concept returns an empty group ID and nothing is recorded.
func (s *ProvisioningService) attach(ctx context.Context, adapter provider.Adapter, num *domain.OwnedNumber) error {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(num.ProviderName, "attach"))
	groupID, err := adapter.AttachToMessagingGroup(ctx, num)
	timer.ObserveDuration()
	if err != nil {
		return err
	}
	if groupID == "" {
		return nil
	}
	if err := s.numberRepo.SetMessagingGroup(ctx, num.ID, groupID); err != nil {
		return fmt.Errorf("attached but failed to record messaging group: %w", err)
	}
	num.MessagingGroupID = &groupID
	s.logger.InfoContext(ctx, "attached number to messaging group",
		"owned_number_id", num.ID, "messaging_group_id", groupID)
	return nil
}

func outcomeForPurchaseError(err error) string {
	if errors.Is(err, domain.ErrNumberUnavailable) {
		return "unavailable"
	}
	return "error"
}
