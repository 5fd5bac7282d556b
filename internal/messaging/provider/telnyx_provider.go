package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

// TelnyxProvider integrates the Telnyx v2 REST API: JSON with bearer auth.
// Telnyx webhooks in this deployment carry no usable signature, so inbound
// authenticity relies on network policy; VerifyInboundSignature is
// trivially true (see Adapter docs).
//
// Numbers bought from Telnyx must be attached to a messaging profile before
// they can send; AttachToMessagingGroup performs that step.
type TelnyxProvider struct {
	logger             *slog.Logger
	client             *resty.Client
	messagingProfileID string
}

// NewTelnyxProvider creates the adapter.
func NewTelnyxProvider(logger *slog.Logger, baseURL, apiKey, messagingProfileID string) *TelnyxProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &TelnyxProvider{
		logger:             logger.With("provider", "telnyx"),
		client:             client,
		messagingProfileID: messagingProfileID,
	}
}

func (p *TelnyxProvider) Name() string { return "telnyx" }

type telnyxAvailableNumbersResponse struct {
	Data []struct {
		ID          string `json:"id"`
		PhoneNumber string `json:"phone_number"`
		RegionInformation []struct {
			RegionType string `json:"region_type"`
			RegionName string `json:"region_name"`
		} `json:"region_information"`
		Features []struct {
			Name string `json:"name"`
		} `json:"features"`
	} `json:"data"`
}

type telnyxNumberOrderResponse struct {
	Data struct {
		ID           string `json:"id"`
		PhoneNumbers []struct {
			ID          string `json:"id"`
			PhoneNumber string `json:"phone_number"`
		} `json:"phone_numbers"`
	} `json:"data"`
}

type telnyxMessageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type telnyxErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (p *TelnyxProvider) SearchAvailableNumbers(ctx context.Context, criteria domain.NumberSearchCriteria) ([]domain.AvailableNumberCandidate, error) {
	req := p.client.R().SetContext(ctx)

	country := criteria.Country
	if country == "" {
		country = "US"
	}
	req.SetQueryParam("filter[country_code]", country)
	if criteria.LineType != "" {
		req.SetQueryParam("filter[phone_number_type]", criteria.LineType)
	}
	if criteria.Prefix != "" {
		req.SetQueryParam("filter[national_destination_code]", criteria.Prefix)
	}
	if criteria.SMSOnly {
		req.SetQueryParam("filter[features]", "sms")
	}
	if criteria.Limit > 0 {
		req.SetQueryParam("filter[limit]", strconv.Itoa(criteria.Limit))
	}
	if criteria.Page > 0 {
		req.SetQueryParam("page[number]", strconv.Itoa(criteria.Page))
	}

	var parsed telnyxAvailableNumbersResponse
	resp, err := req.SetResult(&parsed).Get("/available_phone_numbers")
	if err != nil {
		p.logger.ErrorContext(ctx, "telnyx search request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCriteria, telnyxErrorMessage(resp.Body()))
	default:
		return nil, fmt.Errorf("%w: telnyx search returned status %d", domain.ErrProviderUnavailable, resp.StatusCode())
	}

	candidates := make([]domain.AvailableNumberCandidate, 0, len(parsed.Data))
	for _, n := range parsed.Data {
		caps := domain.NumberCapabilities{}
		for _, f := range n.Features {
			switch f.Name {
			case "sms":
				caps.SMS = true
			case "voice":
				caps.Voice = true
			}
		}
		region := ""
		for _, ri := range n.RegionInformation {
			if ri.RegionType == "state" {
				region = ri.RegionName
			}
		}
		candidates = append(candidates, domain.AvailableNumberCandidate{
			PhoneNumber:    n.PhoneNumber,
			AvailabilityID: n.ID,
			Region:         region,
			Capabilities:   caps,
		})
	}
	p.logger.DebugContext(ctx, "telnyx number search completed", "candidates", len(candidates))
	return candidates, nil
}

func (p *TelnyxProvider) PurchaseNumber(ctx context.Context, candidate domain.AvailableNumberCandidate) (*domain.OwnedNumber, error) {
	payload := map[string]interface{}{
		"phone_numbers": []map[string]string{{"phone_number": candidate.PhoneNumber}},
	}

	var parsed telnyxNumberOrderResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&parsed).
		Post("/number_orders")
	if err != nil {
		p.logger.ErrorContext(ctx, "telnyx number order request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated:
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		// Availability IDs expire server-side; the caller should re-search.
		return nil, fmt.Errorf("%w: %s", domain.ErrNumberUnavailable, telnyxErrorMessage(resp.Body()))
	default:
		return nil, fmt.Errorf("%w: telnyx number order returned status %d", domain.ErrProviderUnavailable, resp.StatusCode())
	}

	if len(parsed.Data.PhoneNumbers) == 0 {
		return nil, fmt.Errorf("%w: telnyx number order response contained no numbers", domain.ErrProviderUnavailable)
	}
	ordered := parsed.Data.PhoneNumbers[0]

	p.logger.InfoContext(ctx, "purchased telnyx number", "phone_number", ordered.PhoneNumber, "provider_number_id", ordered.ID)
	return &domain.OwnedNumber{
		ID:               uuid.New(),
		PhoneNumber:      ordered.PhoneNumber,
		ProviderName:     p.Name(),
		ProviderNumberID: ordered.ID,
		Capabilities:     domain.NumberCapabilities{SMS: true},
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// AttachToMessagingGroup assigns the number to the configured messaging
// profile. Telnyx treats re-assignment to the same profile as a no-op, so
// retries are safe.
func (p *TelnyxProvider) AttachToMessagingGroup(ctx context.Context, num *domain.OwnedNumber) (string, error) {
	payload := map[string]string{"messaging_profile_id": p.messagingProfileID}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		Patch(fmt.Sprintf("/phone_numbers/%s/messaging", num.ProviderNumberID))
	if err != nil {
		p.logger.ErrorContext(ctx, "telnyx messaging profile attach failed", "error", err, "provider_number_id", num.ProviderNumberID)
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: telnyx attach returned status %d: %s",
			domain.ErrProviderUnavailable, resp.StatusCode(), telnyxErrorMessage(resp.Body()))
	}

	p.logger.InfoContext(ctx, "attached telnyx number to messaging profile",
		"provider_number_id", num.ProviderNumberID, "messaging_profile_id", p.messagingProfileID)
	return p.messagingProfileID, nil
}

func (p *TelnyxProvider) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	payload := map[string]string{
		"from": from,
		"to":   to,
		"text": body,
	}

	var parsed telnyxMessageResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&parsed).
		Post("/messages")
	if err != nil {
		p.logger.ErrorContext(ctx, "telnyx send request failed", "error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated || resp.StatusCode() == http.StatusAccepted:
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		return "", &domain.SendRejectedError{Reason: telnyxErrorMessage(resp.Body())}
	default:
		return "", fmt.Errorf("%w: telnyx send returned status %d", domain.ErrProviderUnavailable, resp.StatusCode())
	}

	p.logger.InfoContext(ctx, "submitted message to telnyx", "provider_message_id", parsed.Data.ID)
	return parsed.Data.ID, nil
}

// VerifyInboundSignature always passes: these webhooks carry no usable
// signature, so deployments must restrict inbound sources by network policy.
func (p *TelnyxProvider) VerifyInboundSignature(req *WebhookRequest) bool {
	return true
}

type telnyxWebhookEnvelope struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			ID   string `json:"id"`
			From struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"from"`
			To []struct {
				PhoneNumber string `json:"phone_number"`
				Status      string `json:"status"`
			} `json:"to"`
			Text string `json:"text"`
		} `json:"payload"`
	} `json:"data"`
}

func (p *TelnyxProvider) ParseInboundPayload(req *WebhookRequest) (*InboundMessage, error) {
	var envelope telnyxWebhookEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	payload := envelope.Data.Payload
	if payload.ID == "" || payload.From.PhoneNumber == "" || len(payload.To) == 0 || payload.To[0].PhoneNumber == "" {
		return nil, fmt.Errorf("%w: missing id, from or to", domain.ErrMalformedPayload)
	}
	return &InboundMessage{
		From:              payload.From.PhoneNumber,
		To:                payload.To[0].PhoneNumber,
		Body:              payload.Text,
		ProviderMessageID: payload.ID,
	}, nil
}

func (p *TelnyxProvider) ParseStatusPayload(req *WebhookRequest) (*StatusUpdate, error) {
	var envelope telnyxWebhookEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	payload := envelope.Data.Payload
	if payload.ID == "" || len(payload.To) == 0 || payload.To[0].Status == "" {
		return nil, fmt.Errorf("%w: missing id or status", domain.ErrMalformedPayload)
	}
	rawStatus := payload.To[0].Status
	return &StatusUpdate{
		ProviderMessageID: payload.ID,
		NewStatus:         mapDeliveryStatus(rawStatus),
		RawStatus:         rawStatus,
	}, nil
}

func telnyxErrorMessage(body []byte) string {
	var parsed telnyxErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		if parsed.Errors[0].Detail != "" {
			return parsed.Errors[0].Detail
		}
		return parsed.Errors[0].Title
	}
	if len(body) > 0 && len(body) < 200 {
		return string(body)
	}
	return "unspecified provider error"
}
