package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/rs/zerolog"
)

// WebhookHandler receives billing provider events. It is authenticated by
// the payload signature, not by a session.
type WebhookHandler struct {
	events service.BillingEventService
	logger zerolog.Logger
}

func NewWebhookHandler(events service.BillingEventService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, logger: logger}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.stripe)
}

// stripe godoc
// @Summary Stripe webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} service.BillingEventResult
// @Failure 400 {object} dto.ErrorResponse "invalid signature"
// @Failure 500 {object} dto.ErrorResponse "event must be redelivered"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	result, err := h.events.ApplyBillingEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			writeError(w, h.logger, err)
			return
		}
		// Anything else asks Stripe to retry.
		h.logger.Error().Err(err).Msg("Failed to apply billing event")
		http.Error(w, "failed to apply event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
