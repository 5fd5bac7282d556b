package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/transport/http/middleware"
)

// ProvisioningHandler serves the caller-facing number provisioning API.
type ProvisioningHandler struct {
	provisioning *app.ProvisioningService
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewProvisioningHandler creates a ProvisioningHandler.
func NewProvisioningHandler(provisioning *app.ProvisioningService, validate *validator.Validate, logger *slog.Logger) *ProvisioningHandler {
	return &ProvisioningHandler{
		provisioning: provisioning,
		validate:     validate,
		logger:       logger.With("handler", "provisioning"),
	}
}

// Search serves POST /numbers/search.
func (h *ProvisioningHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req searchNumbersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	criteria := domain.NumberSearchCriteria{
		Country:  req.Country,
		LineType: req.LineType,
		Prefix:   req.Prefix,
		SMSOnly:  req.SMSOnly,
		Limit:    req.Limit,
		Page:     req.Page,
	}
	candidates, err := h.provisioning.SearchNumbers(ctx, caller.UserID, caller.AccountID, req.Provider, criteria)
	if err != nil {
		h.logger.WarnContext(ctx, "number search failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"account_id", caller.AccountID,
			"provider_name", req.Provider,
			"error", err)
		respondDomainError(w, err)
		return
	}

	out := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateResponse{
			PhoneNumber:    c.PhoneNumber,
			AvailabilityID: c.AvailabilityID,
			Region:         c.Region,
			SMS:            c.Capabilities.SMS,
			Voice:          c.Capabilities.Voice,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"candidates": out})
}

// Purchase serves POST /numbers.
func (h *ProvisioningHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req purchaseNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate := domain.AvailableNumberCandidate{
		PhoneNumber:    req.Candidate.PhoneNumber,
		AvailabilityID: req.Candidate.AvailabilityID,
		Region:         req.Candidate.Region,
		Capabilities: domain.NumberCapabilities{
			SMS:   req.Candidate.SMS,
			Voice: req.Candidate.Voice,
		},
	}
	num, err := h.provisioning.PurchaseNumber(ctx, caller.UserID, caller.AccountID, req.Provider, candidate)
	if err != nil {
		h.logger.WarnContext(ctx, "number purchase failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"account_id", caller.AccountID,
			"provider_name", req.Provider,
			"error", err)
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOwnedNumberResponse(num))
}

// RetryAttach serves POST /numbers/{number_id}/attach.
func (h *ProvisioningHandler) RetryAttach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	numberID, err := uuid.Parse(chi.URLParam(r, "number_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid number id")
		return
	}

	num, err := h.provisioning.RetryAttachment(ctx, caller.UserID, numberID)
	if err != nil {
		h.logger.WarnContext(ctx, "attachment retry failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"number_id", numberID,
			"error", err)
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOwnedNumberResponse(num))
}

// List serves GET /numbers.
func (h *ProvisioningHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	nums, err := h.provisioning.ListNumbers(ctx, caller.AccountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list numbers failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"account_id", caller.AccountID,
			"error", err)
		respondDomainError(w, err)
		return
	}

	out := make([]ownedNumberResponse, 0, len(nums))
	for i := range nums {
		out = append(out, toOwnedNumberResponse(&nums[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"numbers": out})
}
