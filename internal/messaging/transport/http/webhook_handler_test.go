package http_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
	httptransport "github.com/omnitext/omnitext/internal/messaging/transport/http"
)

type webhookFixture struct {
	msgRepo *MockMessageRepository
	numRepo *MockOwnedNumberRepository
	broker  *MockPublisher
	server  *httptest.Server
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		msgRepo: new(MockMessageRepository),
		numRepo: new(MockOwnedNumberRepository),
		broker:  new(MockPublisher),
	}
	providers := map[string]provider.Adapter{"mock": provider.NewMockProvider(testLogger())}
	router := app.NewInboundRouter(providers, f.numRepo, f.msgRepo, f.broker, testLogger())
	reconciler := app.NewStatusReconciler(providers, f.msgRepo, f.broker, testLogger())
	handler := httptransport.NewWebhookHandler(router, reconciler, "https://sms.example.com", testLogger())

	mux := httptransport.NewRouter(httptransport.RouterDeps{
		MessageHandler:      httptransport.NewMessageHandler(nil, nil, testLogger()),
		ProvisioningHandler: httptransport.NewProvisioningHandler(nil, nil, testLogger()),
		WebhookHandler:      handler,
		AuthMiddleware: func(next http.Handler) http.Handler {
			return next
		},
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *webhookFixture) postForm(t *testing.T, path string, form url.Values, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookHandler_Inbound_Recorded(t *testing.T) {
	f := newWebhookFixture(t)
	accountID := uuid.New()

	f.numRepo.On("GetByNumber", mock.Anything, "+15551230000").Return(&domain.OwnedNumber{
		ID:          uuid.New(),
		AccountID:   accountID,
		PhoneNumber: "+15551230000",
	}, nil)
	f.msgRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	f.broker.On("Publish", mock.Anything, "sms.inbound.received.mock", mock.Anything).Return(nil)

	resp := f.postForm(t, "/webhooks/mock/inbound", url.Values{
		"from":       {"+14155552671"},
		"to":         {"+15551230000"},
		"body":       {"hello"},
		"message_id": {"in-1"},
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.msgRepo.AssertExpectations(t)
	f.broker.AssertExpectations(t)
}

func TestWebhookHandler_Inbound_BadSignature(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postForm(t, "/webhooks/mock/inbound", url.Values{
		"from":       {"+14155552671"},
		"to":         {"+15551230000"},
		"message_id": {"in-1"},
	}, http.Header{"X-Mock-Signature": {"invalid"}})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	f.msgRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestWebhookHandler_Inbound_UnknownNumberSilentDrop(t *testing.T) {
	f := newWebhookFixture(t)

	f.numRepo.On("GetByNumber", mock.Anything, "+15551239999").Return(nil, nil)

	resp := f.postForm(t, "/webhooks/mock/inbound", url.Values{
		"from":       {"+14155552671"},
		"to":         {"+15551239999"},
		"message_id": {"in-2"},
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.msgRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestWebhookHandler_Inbound_MalformedAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postForm(t, "/webhooks/mock/inbound", url.Values{"from": {"+14155552671"}}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookHandler_Inbound_UnknownProviderAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.postForm(t, "/webhooks/nope/inbound", url.Values{"from": {"+14155552671"}}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookHandler_Status_Applied(t *testing.T) {
	f := newWebhookFixture(t)

	f.msgRepo.On("GetByProviderMessageID", mock.Anything, "mock", "out-1").Return(&domain.Message{
		ID:           uuid.New(),
		ProviderName: "mock",
		Status:       domain.MessageStatusSent,
	}, nil)
	f.msgRepo.On("UpdateStatusIfForward", mock.Anything, "mock", "out-1", domain.MessageStatusDelivered).Return(true, nil)
	f.broker.On("Publish", mock.Anything, "sms.status.changed.mock", mock.Anything).Return(nil)

	resp := f.postForm(t, "/webhooks/mock/status", url.Values{
		"message_id": {"out-1"},
		"status":     {"delivered"},
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.msgRepo.AssertExpectations(t)
	f.broker.AssertExpectations(t)
}

func TestWebhookHandler_Status_UnknownMessageAccepted(t *testing.T) {
	f := newWebhookFixture(t)

	f.msgRepo.On("GetByProviderMessageID", mock.Anything, "mock", "ghost").Return(nil, nil)

	resp := f.postForm(t, "/webhooks/mock/status", url.Values{
		"message_id": {"ghost"},
		"status":     {"delivered"},
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.msgRepo.AssertNotCalled(t, "UpdateStatusIfForward", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_Status_StoreFailureIs500(t *testing.T) {
	f := newWebhookFixture(t)

	f.msgRepo.On("GetByProviderMessageID", mock.Anything, "mock", "out-2").Return(nil, assert.AnError)

	resp := f.postForm(t, "/webhooks/mock/status", url.Values{
		"message_id": {"out-2"},
		"status":     {"delivered"},
	}, nil)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
