package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

// --- Mocks shared by the app package tests ---

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByProviderMessageID(ctx context.Context, providerName, providerMessageID string) (*domain.Message, error) {
	args := m.Called(ctx, providerName, providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateStatusIfForward(ctx context.Context, providerName, providerMessageID string, newStatus domain.MessageStatus) (bool, error) {
	args := m.Called(ctx, providerName, providerMessageID, newStatus)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	args := m.Called(ctx, id, providerMessageID)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail string) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

type MockOwnedNumberRepository struct {
	mock.Mock
}

func (m *MockOwnedNumberRepository) Insert(ctx context.Context, num *domain.OwnedNumber) error {
	args := m.Called(ctx, num)
	return args.Error(0)
}

func (m *MockOwnedNumberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OwnedNumber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OwnedNumber), args.Error(1)
}

func (m *MockOwnedNumberRepository) GetByNumber(ctx context.Context, e164 string) (*domain.OwnedNumber, error) {
	args := m.Called(ctx, e164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OwnedNumber), args.Error(1)
}

func (m *MockOwnedNumberRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.OwnedNumber, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OwnedNumber), args.Error(1)
}

func (m *MockOwnedNumberRepository) SetMessagingGroup(ctx context.Context, id uuid.UUID, groupID string) error {
	args := m.Called(ctx, id, groupID)
	return args.Error(0)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetAccountAdmin(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
