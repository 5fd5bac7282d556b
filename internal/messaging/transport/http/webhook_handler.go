package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/domain"
	"github.com/omnitext/omnitext/internal/messaging/provider"
)

// WebhookHandler terminates provider callbacks for inbound messages and
// delivery status.
//
// Response policy, per vendor retry semantics: 200 for anything that must
// not be redelivered (including malformed payloads and events we ignore),
// 403 only for signature failure, 5xx only for transient internal faults
// where a vendor retry is the desired recovery path.
type WebhookHandler struct {
	router     *app.InboundRouter
	reconciler *app.StatusReconciler
	logger     *slog.Logger
	// publicBaseURL is the externally visible scheme+host of this
	// deployment; signing vendors compute signatures over the full public
	// URL, which proxies obscure from the request itself.
	publicBaseURL string
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(router *app.InboundRouter, reconciler *app.StatusReconciler, publicBaseURL string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		router:        router,
		reconciler:    reconciler,
		logger:        logger.With("handler", "webhook"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// buildWebhookRequest captures the raw body and, for form-encoded vendors,
// the parsed POST parameters, without consuming state the adapter needs.
func (h *WebhookHandler) buildWebhookRequest(r *http.Request) (*provider.WebhookRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	req := &provider.WebhookRequest{
		URL:    h.publicBaseURL + r.URL.RequestURI(),
		Header: r.Header,
		Body:   body,
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(bytes.TrimSpace(body)))
		if err != nil {
			return nil, err
		}
		req.Form = form
	}
	return req, nil
}

// HandleInbound serves POST /webhooks/{provider_name}/inbound.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := chi.URLParam(r, "provider_name")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "provider_name", providerName)

	req, err := h.buildWebhookRequest(r)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read inbound webhook request", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read request")
		return
	}

	err = h.router.HandleInbound(ctx, providerName, req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, app.ErrSignatureInvalid):
		respondError(w, http.StatusForbidden, "signature verification failed")
	case errors.Is(err, domain.ErrMalformedPayload), errors.Is(err, app.ErrUnknownProvider):
		// Redelivery cannot fix a permanently bad payload; acknowledge it.
		logger.WarnContext(ctx, "acknowledging unprocessable inbound webhook", "error", err)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		// Transient internal fault: let the vendor retry.
		logger.ErrorContext(ctx, "inbound webhook processing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// HandleStatus serves POST /webhooks/{provider_name}/status.
func (h *WebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := chi.URLParam(r, "provider_name")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "provider_name", providerName)

	req, err := h.buildWebhookRequest(r)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read status webhook request", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read request")
		return
	}

	err = h.reconciler.Reconcile(ctx, providerName, req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrMalformedPayload), errors.Is(err, app.ErrUnknownProvider):
		logger.WarnContext(ctx, "acknowledging unprocessable status webhook", "error", err)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		logger.ErrorContext(ctx, "status webhook processing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
