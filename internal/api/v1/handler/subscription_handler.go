package handler

import (
	"net/http"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/dto"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/middleware"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	stripeSvc *service.StripeService
	quotaSvc  service.QuotaService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(stripeSvc *service.StripeService, quotaSvc service.QuotaService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{stripeSvc: stripeSvc, quotaSvc: quotaSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /subscriptions/config", h.Config)
	mux.Handle("POST /subscriptions/create-customer", authMiddleware(http.HandlerFunc(h.CreateCustomer)))
	mux.Handle("POST /subscriptions/create-subscription", authMiddleware(http.HandlerFunc(h.CreateSubscription)))
	mux.Handle("POST /subscriptions/create-setup-intent", authMiddleware(http.HandlerFunc(h.CreateSetupIntent)))
	mux.Handle("POST /subscriptions/user/cancel", authMiddleware(http.HandlerFunc(h.Cancel)))
	mux.Handle("POST /subscriptions/user/resume", authMiddleware(http.HandlerFunc(h.Resume)))
	mux.Handle("GET /subscriptions/user/status", authMiddleware(http.HandlerFunc(h.Status)))
	mux.Handle("GET /subscriptions/user/usage", authMiddleware(http.HandlerFunc(h.Usage)))
}

// Config godoc
// @Summary List purchasable plans
// @Tags subscriptions
// @Produce json
// @Success 200 {object} service.BillingConfig
// @Failure 502 {object} dto.ErrorResponse
// @Router /subscriptions/config [get]
func (h *SubscriptionHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.stripeSvc.GetConfig(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// CreateCustomer godoc
// @Summary Get or create the Stripe customer for the authenticated user
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest false "Customer email"
// @Success 200 {object} dto.CreateCustomerResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /subscriptions/create-customer [post]
func (h *SubscriptionHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.CreateCustomerRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	email := req.Email
	if email == "" {
		email = middleware.UserEmail(r.Context())
	}
	customerID, err := h.stripeSvc.GetOrCreateCustomer(r.Context(), userID, email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CreateCustomerResponse{CustomerID: customerID})
}

// CreateSubscription godoc
// @Summary Start a subscription
// @Description Creates an incomplete subscription and returns the client secret used to confirm the first payment.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body dto.CreateSubscriptionRequest true "Price to subscribe to"
// @Success 200 {object} service.SubscriptionCheckout
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /subscriptions/create-subscription [post]
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.CreateSubscriptionRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	email := req.Email
	if email == "" {
		email = middleware.UserEmail(r.Context())
	}
	checkout, err := h.stripeSvc.CreateSubscription(r.Context(), userID, email, req.PriceID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

// CreateSetupIntent godoc
// @Summary Create a setup intent for updating the payment method
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.SetupIntentResponse
// @Failure 400 {object} dto.ErrorResponse "no stripe customer"
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/create-setup-intent [post]
func (h *SubscriptionHandler) CreateSetupIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	secret, err := h.stripeSvc.CreateSetupIntent(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SetupIntentResponse{ClientSecret: secret})
}

// Cancel godoc
// @Summary Cancel the subscription at the end of the current period
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body dto.SubscriptionActionRequest true "Subscription"
// @Success 200 {object} dto.SubscriptionActionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/user/cancel [post]
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setCancelAtPeriodEnd(w, r, true)
}

// Resume godoc
// @Summary Undo a pending cancellation
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body dto.SubscriptionActionRequest true "Subscription"
// @Success 200 {object} dto.SubscriptionActionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/user/resume [post]
func (h *SubscriptionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setCancelAtPeriodEnd(w, r, false)
}

func (h *SubscriptionHandler) setCancelAtPeriodEnd(w http.ResponseWriter, r *http.Request, cancel bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.SubscriptionActionRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.stripeSvc.SetCancelAtPeriodEnd(r.Context(), userID, req.SubscriptionID, cancel); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SubscriptionActionResponse{SubscriptionID: req.SubscriptionID, CancelAtPeriodEnd: cancel})
}

// Status godoc
// @Summary Get the stored subscription state
// @Tags subscriptions
// @Produce json
// @Success 200 {object} model.SubscriptionState
// @Failure 401 {object} dto.ErrorResponse
// @Router /subscriptions/user/status [get]
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.stripeSvc.GetSubscriptionStatus(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Usage godoc
// @Summary Get this week's usage
// @Tags subscriptions
// @Produce json
// @Success 200 {object} service.UsageStatus
// @Failure 401 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /subscriptions/user/usage [get]
func (h *SubscriptionHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	usage, err := h.quotaSvc.GetUsageStatus(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
