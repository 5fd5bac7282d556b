package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/omnitext/omnitext/internal/messaging/app"
	"github.com/omnitext/omnitext/internal/messaging/transport/http/middleware"
)

// MessageHandler serves the caller-facing message API.
type MessageHandler struct {
	sendService *app.SendService
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(sendService *app.SendService, validate *validator.Validate, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		sendService: sendService,
		validate:    validate,
		logger:      logger.With("handler", "message"),
	}
}

// Send serves POST /messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.sendService.Send(ctx, caller.AccountID, req.To, req.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "send message failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"account_id", caller.AccountID,
			"error", err)
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// List serves GET /messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	msgs, err := h.sendService.ListMessages(ctx, caller.AccountID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "list messages failed",
			"request_id", chi_middleware.GetReqID(ctx),
			"account_id", caller.AccountID,
			"error", err)
		respondDomainError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}
