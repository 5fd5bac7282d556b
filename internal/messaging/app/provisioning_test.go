package app

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
)

func setupProvisioningTest(t *testing.T) (*ProvisioningService, *provider.MockProvider, *MockOwnedNumberRepository, *MockAccountRepository) {
	t.Helper()
	mockAdapter := provider.NewMockProvider(testLogger(t))
	numberRepo := new(MockOwnedNumberRepository)
	accountRepo := new(MockAccountRepository)
	svc := NewProvisioningService(
		map[string]provider.Adapter{"mock": mockAdapter},
		numberRepo, accountRepo, testLogger(t),
	)
	return svc, mockAdapter, numberRepo, accountRepo
}

func TestProvisioningService_SearchRequiresAdmin(t *testing.T) {
	svc, _, _, accountRepo := setupProvisioningTest(t)

	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(uuid.New(), nil)

	_, err := svc.SearchNumbers(context.Background(), uuid.New(), accountID, "mock", domain.NumberSearchCriteria{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestProvisioningService_SearchFiltersByPrefix(t *testing.T) {
	svc, _, _, accountRepo := setupProvisioningTest(t)

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)

	candidates, err := svc.SearchNumbers(context.Background(), callerID, accountID, "mock", domain.NumberSearchCriteria{
		Country: "US", LineType: "local", Prefix: "415", Limit: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		assert.Truef(t, strings.HasPrefix(c.PhoneNumber, "+1415"), "candidate %s should start with +1415", c.PhoneNumber)
	}
}

func TestProvisioningService_PurchasePersistsThenAttaches(t *testing.T) {
	svc, _, numberRepo, accountRepo := setupProvisioningTest(t)

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{}, nil)
	numberRepo.On("Insert", mock.Anything, mock.MatchedBy(func(n *domain.OwnedNumber) bool {
		return n.AccountID == accountID && n.ProviderName == "mock"
	})).Return(nil)
	numberRepo.On("SetMessagingGroup", mock.Anything, mock.Anything, "mock-group").Return(nil)

	candidate := domain.AvailableNumberCandidate{
		PhoneNumber:    "+14155550100",
		AvailabilityID: "avail-1",
		Capabilities:   domain.NumberCapabilities{SMS: true},
	}
	num, err := svc.PurchaseNumber(context.Background(), callerID, accountID, "mock", candidate)
	require.NoError(t, err)
	assert.Equal(t, "+14155550100", num.PhoneNumber)
	assert.True(t, num.Attached())

	numberRepo.AssertExpectations(t)
}

func TestProvisioningService_AttachFailureIsPartialSuccess(t *testing.T) {
	svc, adapter, numberRepo, accountRepo := setupProvisioningTest(t)
	adapter.FailAttach = true

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{}, nil)
	numberRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	candidate := domain.AvailableNumberCandidate{PhoneNumber: "+14155550100", AvailabilityID: "avail-1"}
	num, err := svc.PurchaseNumber(context.Background(), callerID, accountID, "mock", candidate)

	// The purchase succeeded and was recorded; only attachment is pending.
	require.NoError(t, err)
	require.NotNil(t, num)
	assert.False(t, num.Attached())
	numberRepo.AssertCalled(t, "Insert", mock.Anything, mock.Anything)
	numberRepo.AssertNotCalled(t, "SetMessagingGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisioningService_RetryAttachmentSucceedsWithoutRepurchase(t *testing.T) {
	svc, adapter, numberRepo, accountRepo := setupProvisioningTest(t)
	adapter.FailAttach = false

	callerID := uuid.New()
	accountID := uuid.New()
	numberID := uuid.New()
	pending := &domain.OwnedNumber{
		ID:           numberID,
		AccountID:    accountID,
		PhoneNumber:  "+14155550100",
		ProviderName: "mock",
	}
	numberRepo.On("GetByID", mock.Anything, numberID).Return(pending, nil)
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("SetMessagingGroup", mock.Anything, numberID, "mock-group").Return(nil)

	num, err := svc.RetryAttachment(context.Background(), callerID, numberID)
	require.NoError(t, err)
	assert.True(t, num.Attached())

	// No purchase-path calls on retry.
	numberRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProvisioningService_RetryAttachmentAlreadyAttached(t *testing.T) {
	svc, _, numberRepo, accountRepo := setupProvisioningTest(t)

	callerID := uuid.New()
	accountID := uuid.New()
	numberID := uuid.New()
	groupID := "mock-group"
	attached := &domain.OwnedNumber{
		ID:               numberID,
		AccountID:        accountID,
		ProviderName:     "mock",
		MessagingGroupID: &groupID,
	}
	numberRepo.On("GetByID", mock.Anything, numberID).Return(attached, nil)
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)

	num, err := svc.RetryAttachment(context.Background(), callerID, numberID)
	require.NoError(t, err)
	assert.True(t, num.Attached())
	numberRepo.AssertNotCalled(t, "SetMessagingGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisioningService_DoublePurchaseGuard(t *testing.T) {
	svc, _, numberRepo, accountRepo := setupProvisioningTest(t)

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{
		{ProviderName: "mock", Capabilities: domain.NumberCapabilities{SMS: true}},
	}, nil)

	_, err := svc.PurchaseNumber(context.Background(), callerID, accountID, "mock", domain.AvailableNumberCandidate{})
	assert.ErrorIs(t, err, domain.ErrNumberAlreadyProvisioned)
	numberRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProvisioningService_ExpiredCandidate(t *testing.T) {
	svc, adapter, numberRepo, accountRepo := setupProvisioningTest(t)
	adapter.FailPurchase = true

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{}, nil)

	_, err := svc.PurchaseNumber(context.Background(), callerID, accountID, "mock", domain.AvailableNumberCandidate{})
	assert.ErrorIs(t, err, domain.ErrNumberUnavailable)
	numberRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProvisioningService_SearchThenPurchaseEndToEnd(t *testing.T) {
	svc, _, numberRepo, accountRepo := setupProvisioningTest(t)

	callerID := uuid.New()
	accountID := uuid.New()
	accountRepo.On("GetAccountAdmin", mock.Anything, accountID).Return(callerID, nil)
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{}, nil)
	numberRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	numberRepo.On("SetMessagingGroup", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	candidates, err := svc.SearchNumbers(context.Background(), callerID, accountID, "mock", domain.NumberSearchCriteria{
		Country: "US", LineType: "local", Prefix: "415",
	})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	num, err := svc.PurchaseNumber(context.Background(), callerID, accountID, "mock", candidates[0])
	require.NoError(t, err)
	assert.Equal(t, candidates[0].PhoneNumber, num.PhoneNumber)
}
