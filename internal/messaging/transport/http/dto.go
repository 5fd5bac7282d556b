package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/domain"
)

type sendMessageRequest struct {
	To   string `json:"to" validate:"required"`
	Body string `json:"body" validate:"required,max=1600"`
}

type messageResponse struct {
	ID                uuid.UUID `json:"id"`
	AccountID         uuid.UUID `json:"account_id"`
	ProviderName      string    `json:"provider_name"`
	Direction         string    `json:"direction"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Body              string    `json:"body"`
	Status            string    `json:"status"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	ErrorDetail       *string   `json:"error_detail,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toMessageResponse(msg *domain.Message) messageResponse {
	return messageResponse{
		ID:                msg.ID,
		AccountID:         msg.AccountID,
		ProviderName:      msg.ProviderName,
		Direction:         string(msg.Direction),
		From:              msg.FromNumber,
		To:                msg.ToNumber,
		Body:              msg.Body,
		Status:            string(msg.Status),
		ProviderMessageID: msg.ProviderMessageID,
		ErrorDetail:       msg.ErrorDetail,
		CreatedAt:         msg.CreatedAt,
	}
}

type searchNumbersRequest struct {
	Provider string `json:"provider" validate:"required"`
	Country  string `json:"country" validate:"omitempty,len=2"`
	LineType string `json:"line_type" validate:"omitempty,oneof=local toll_free mobile"`
	Prefix   string `json:"prefix" validate:"omitempty,numeric,max=6"`
	SMSOnly  bool   `json:"sms_only"`
	Limit    int    `json:"limit" validate:"omitempty,min=1,max=50"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
}

type candidateResponse struct {
	PhoneNumber    string `json:"phone_number"`
	AvailabilityID string `json:"availability_id"`
	Region         string `json:"region"`
	SMS            bool   `json:"sms"`
	Voice          bool   `json:"voice"`
}

type purchaseNumberRequest struct {
	Provider  string `json:"provider" validate:"required"`
	Candidate struct {
		PhoneNumber    string `json:"phone_number" validate:"required"`
		AvailabilityID string `json:"availability_id" validate:"required"`
		Region         string `json:"region"`
		SMS            bool   `json:"sms"`
		Voice          bool   `json:"voice"`
	} `json:"candidate" validate:"required"`
}

type ownedNumberResponse struct {
	ID               uuid.UUID `json:"id"`
	AccountID        uuid.UUID `json:"account_id"`
	PhoneNumber      string    `json:"phone_number"`
	ProviderName     string    `json:"provider_name"`
	ProviderNumberID string    `json:"provider_number_id"`
	SMS              bool      `json:"sms"`
	Voice            bool      `json:"voice"`
	MessagingGroupID *string   `json:"messaging_group_id,omitempty"`
	Attached         bool      `json:"attached"`
	CreatedAt        time.Time `json:"created_at"`
}

func toOwnedNumberResponse(num *domain.OwnedNumber) ownedNumberResponse {
	return ownedNumberResponse{
		ID:               num.ID,
		AccountID:        num.AccountID,
		PhoneNumber:      num.PhoneNumber,
		ProviderName:     num.ProviderName,
		ProviderNumberID: num.ProviderNumberID,
		SMS:              num.Capabilities.SMS,
		Voice:            num.Capabilities.Voice,
		MessagingGroupID: num.MessagingGroupID,
		Attached:         num.Usable(),
		CreatedAt:        num.CreatedAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
