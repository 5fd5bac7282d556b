package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

const twilioAPIVersion = "2010-04-01"

// TwilioProvider integrates the Twilio REST API: form-encoded requests with
// basic auth, and HMAC-SHA1 signed webhooks.
type TwilioProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

// NewTwilioProvider creates the adapter. A nil httpClient gets a 10s-timeout
// default.
func NewTwilioProvider(logger *slog.Logger, baseURL, accountSID, authToken string, httpClient *http.Client) *TwilioProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioProvider{
		logger:     logger.With("provider", "twilio"),
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
	}
}

func (p *TwilioProvider) Name() string { return "twilio" }

type twilioAvailableNumbersResponse struct {
	AvailablePhoneNumbers []struct {
		PhoneNumber  string `json:"phone_number"`
		Region       string `json:"region"`
		Capabilities struct {
			SMS   bool `json:"sms"`
			Voice bool `json:"voice"`
		} `json:"capabilities"`
	} `json:"available_phone_numbers"`
}

type twilioNumberResponse struct {
	SID          string `json:"sid"`
	PhoneNumber  string `json:"phone_number"`
	Capabilities struct {
		SMS   bool `json:"sms"`
		Voice bool `json:"voice"`
	} `json:"capabilities"`
}

type twilioMessageResponse struct {
	SID string `json:"sid"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func twilioLineType(lineType string) (string, error) {
	switch lineType {
	case "local", "":
		return "Local", nil
	case "toll_free":
		return "TollFree", nil
	case "mobile":
		return "Mobile", nil
	default:
		return "", fmt.Errorf("%w: unsupported line type %q", domain.ErrInvalidCriteria, lineType)
	}
}

func (p *TwilioProvider) SearchAvailableNumbers(ctx context.Context, criteria domain.NumberSearchCriteria) ([]domain.AvailableNumberCandidate, error) {
	lineType, err := twilioLineType(criteria.LineType)
	if err != nil {
		return nil, err
	}
	country := criteria.Country
	if country == "" {
		country = "US"
	}

	query := url.Values{}
	if criteria.Prefix != "" {
		query.Set("AreaCode", criteria.Prefix)
	}
	if criteria.SMSOnly {
		query.Set("SmsEnabled", "true")
	}
	if criteria.Limit > 0 {
		query.Set("PageSize", strconv.Itoa(criteria.Limit))
	}
	if criteria.Page > 0 {
		query.Set("Page", strconv.Itoa(criteria.Page))
	}

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/AvailablePhoneNumbers/%s/%s.json",
		p.baseURL, twilioAPIVersion, p.accountSID, country, lineType)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	respBody, status, err := p.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCriteria, twilioErrorMessage(respBody))
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: twilio search returned status %d", domain.ErrProviderUnavailable, status)
	}

	var parsed twilioAvailableNumbersResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode twilio search response: %v", domain.ErrProviderUnavailable, err)
	}

	candidates := make([]domain.AvailableNumberCandidate, 0, len(parsed.AvailablePhoneNumbers))
	for _, n := range parsed.AvailablePhoneNumbers {
		candidates = append(candidates, domain.AvailableNumberCandidate{
			PhoneNumber: n.PhoneNumber,
			// Twilio purchases by phone number, so the number itself is
			// the availability identifier.
			AvailabilityID: n.PhoneNumber,
			Region:         n.Region,
			Capabilities: domain.NumberCapabilities{
				SMS:   n.Capabilities.SMS,
				Voice: n.Capabilities.Voice,
			},
		})
	}
	p.logger.DebugContext(ctx, "twilio number search completed", "candidates", len(candidates))
	return candidates, nil
}

func (p *TwilioProvider) PurchaseNumber(ctx context.Context, candidate domain.AvailableNumberCandidate) (*domain.OwnedNumber, error) {
	form := url.Values{}
	form.Set("PhoneNumber", candidate.AvailabilityID)

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/IncomingPhoneNumbers.json", p.baseURL, twilioAPIVersion, p.accountSID)
	respBody, status, err := p.do(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		// The candidate expired or was bought by someone else between
		// search and purchase; caller should re-search.
		return nil, fmt.Errorf("%w: %s", domain.ErrNumberUnavailable, twilioErrorMessage(respBody))
	default:
		return nil, fmt.Errorf("%w: twilio purchase returned status %d", domain.ErrProviderUnavailable, status)
	}

	var parsed twilioNumberResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode twilio purchase response: %v", domain.ErrProviderUnavailable, err)
	}

	p.logger.InfoContext(ctx, "purchased twilio number", "phone_number", parsed.PhoneNumber, "provider_number_id", parsed.SID)
	return &domain.OwnedNumber{
		ID:               uuid.New(),
		PhoneNumber:      parsed.PhoneNumber,
		ProviderName:     p.Name(),
		ProviderNumberID: parsed.SID,
		Capabilities: domain.NumberCapabilities{
			SMS:   parsed.Capabilities.SMS,
			Voice: parsed.Capabilities.Voice,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// AttachToMessagingGroup is a no-op: Twilio numbers are sendable as soon as
// they are purchased.
func (p *TwilioProvider) AttachToMessagingGroup(ctx context.Context, num *domain.OwnedNumber) (string, error) {
	return "", nil
}

func (p *TwilioProvider) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", p.baseURL, twilioAPIVersion, p.accountSID)
	respBody, status, err := p.do(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
	case status >= 400 && status < 500:
		return "", &domain.SendRejectedError{Reason: twilioErrorMessage(respBody)}
	default:
		return "", fmt.Errorf("%w: twilio send returned status %d", domain.ErrProviderUnavailable, status)
	}

	var parsed twilioMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to decode twilio send response: %v", domain.ErrProviderUnavailable, err)
	}
	p.logger.InfoContext(ctx, "submitted message to twilio", "provider_message_id", parsed.SID)
	return parsed.SID, nil
}

// VerifyInboundSignature recomputes Twilio's webhook signature: HMAC-SHA1
// over the full request URL concatenated with every POST parameter name and
// value in lexical key order, base64 encoded, carried in X-Twilio-Signature.
func (p *TwilioProvider) VerifyInboundSignature(req *WebhookRequest) bool {
	provided := req.Header.Get("X-Twilio-Signature")
	if provided == "" {
		return false
	}

	keys := make([]string, 0, len(req.Form))
	for k := range req.Form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(req.URL)
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(req.Form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(p.authToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}

func (p *TwilioProvider) ParseInboundPayload(req *WebhookRequest) (*InboundMessage, error) {
	from := req.Form.Get("From")
	to := req.Form.Get("To")
	sid := req.Form.Get("MessageSid")
	if from == "" || to == "" || sid == "" {
		return nil, fmt.Errorf("%w: missing From, To or MessageSid", domain.ErrMalformedPayload)
	}
	return &InboundMessage{
		From:              from,
		To:                to,
		Body:              req.Form.Get("Body"),
		ProviderMessageID: sid,
	}, nil
}

func (p *TwilioProvider) ParseStatusPayload(req *WebhookRequest) (*StatusUpdate, error) {
	sid := req.Form.Get("MessageSid")
	rawStatus := req.Form.Get("MessageStatus")
	if sid == "" || rawStatus == "" {
		return nil, fmt.Errorf("%w: missing MessageSid or MessageStatus", domain.ErrMalformedPayload)
	}
	return &StatusUpdate{
		ProviderMessageID: sid,
		NewStatus:         mapDeliveryStatus(rawStatus),
		RawStatus:         rawStatus,
	}, nil
}

// do executes a request with basic auth and returns body and status code.
// Transport failures surface as ErrProviderUnavailable.
func (p *TwilioProvider) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, int, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create twilio request: %w", err)
	}
	httpReq.SetBasicAuth(p.accountSID, p.authToken)
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "twilio request failed", "error", err, "method", method)
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("%w: failed to read twilio response: %v", domain.ErrProviderUnavailable, err)
	}
	return respBody, httpResp.StatusCode, nil
}

func twilioErrorMessage(body []byte) string {
	var parsed twilioErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if len(body) > 0 && len(body) < 200 {
		return string(body)
	}
	return "unspecified provider error"
}
