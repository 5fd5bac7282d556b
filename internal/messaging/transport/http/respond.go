package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/domain"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the error taxonomy to HTTP status codes for the
// caller-facing APIs. Webhook endpoints use their own mapping (see
// webhook_handler.go); vendors need different semantics.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCriteria):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNumberAlreadyProvisioned),
		errors.Is(err, domain.ErrNumberUnavailable),
		errors.Is(err, domain.ErrNoSenderNumber),
		errors.Is(err, domain.ErrDuplicateEntry):
		respondError(w, http.StatusConflict, err.Error())
	case domain.IsSendRejected(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, app.ErrUnknownProvider):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
