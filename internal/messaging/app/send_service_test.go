package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
)

func setupSendTest(t *testing.T) (*SendService, *provider.MockProvider, *MockMessageRepository, *MockOwnedNumberRepository) {
	t.Helper()
	mockAdapter := provider.NewMockProvider(testLogger(t))
	messageRepo := new(MockMessageRepository)
	numberRepo := new(MockOwnedNumberRepository)
	svc := NewSendService(
		map[string]provider.Adapter{"mock": mockAdapter},
		messageRepo, numberRepo, testLogger(t),
	)
	return svc, mockAdapter, messageRepo, numberRepo
}

func ownedSMSNumber(accountID uuid.UUID) domain.OwnedNumber {
	return domain.OwnedNumber{
		ID:           uuid.New(),
		AccountID:    accountID,
		PhoneNumber:  "+14155550100",
		ProviderName: "mock",
		Capabilities: domain.NumberCapabilities{SMS: true},
	}
}

func TestSendService_HappyPath(t *testing.T) {
	svc, _, messageRepo, numberRepo := setupSendTest(t)

	accountID := uuid.New()
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{ownedSMSNumber(accountID)}, nil)
	messageRepo.On("Insert", mock.Anything, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Status == domain.MessageStatusQueued &&
			msg.Direction == domain.DirectionOutbound &&
			msg.FromNumber == "+14155550100" &&
			msg.ToNumber == "+15551234567"
	})).Return(nil)
	messageRepo.On("MarkSent", mock.Anything, mock.Anything, "mockmsg-1").Return(nil)

	// Destination arrives raw and must be normalized before the send.
	msg, err := svc.Send(context.Background(), accountID, "555-123-4567", "hello out there")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusSent, msg.Status)
	require.NotNil(t, msg.ProviderMessageID)
	assert.Equal(t, "mockmsg-1", *msg.ProviderMessageID)

	messageRepo.AssertExpectations(t)
}

func TestSendService_InvalidDestination(t *testing.T) {
	svc, _, messageRepo, _ := setupSendTest(t)

	_, err := svc.Send(context.Background(), uuid.New(), "123", "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	messageRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSendService_EmptyBody(t *testing.T) {
	svc, _, _, _ := setupSendTest(t)

	_, err := svc.Send(context.Background(), uuid.New(), "+15551234567", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendService_NoSenderNumber(t *testing.T) {
	svc, _, _, numberRepo := setupSendTest(t)

	accountID := uuid.New()
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{}, nil)

	_, err := svc.Send(context.Background(), accountID, "+15551234567", "hello")
	assert.ErrorIs(t, err, domain.ErrNoSenderNumber)
}

func TestSendService_SkipsUnattachedNumbersRequiringGroup(t *testing.T) {
	svc, _, _, numberRepo := setupSendTest(t)

	accountID := uuid.New()
	pending := domain.OwnedNumber{
		ID:           uuid.New(),
		AccountID:    accountID,
		PhoneNumber:  "+14155550101",
		ProviderName: "telnyx", // requires attachment, none recorded
		Capabilities: domain.NumberCapabilities{SMS: true},
	}
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{pending}, nil)

	_, err := svc.Send(context.Background(), accountID, "+15551234567", "hello")
	assert.ErrorIs(t, err, domain.ErrNoSenderNumber)
}

func TestSendService_ProviderRejection(t *testing.T) {
	svc, adapter, messageRepo, numberRepo := setupSendTest(t)
	adapter.RejectSend = true

	accountID := uuid.New()
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{ownedSMSNumber(accountID)}, nil)
	messageRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	messageRepo.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	msg, err := svc.Send(context.Background(), accountID, "+15551234567", "hello")
	assert.True(t, domain.IsSendRejected(err))
	require.NotNil(t, msg)
	assert.Equal(t, domain.MessageStatusFailed, msg.Status)

	messageRepo.AssertCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	messageRepo.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendService_ProviderUnavailable(t *testing.T) {
	svc, adapter, messageRepo, numberRepo := setupSendTest(t)
	adapter.FailSend = true

	accountID := uuid.New()
	numberRepo.On("ListByAccount", mock.Anything, accountID).Return([]domain.OwnedNumber{ownedSMSNumber(accountID)}, nil)
	messageRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	messageRepo.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Send(context.Background(), accountID, "+15551234567", "hello")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
