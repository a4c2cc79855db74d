package handler

import (
	"net/http"
	"strconv"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/rs/zerolog"
)

// InternalHandler serves operator and scheduler endpoints.
type InternalHandler struct {
	reconciler service.ReconcilerService
	logger     zerolog.Logger
}

func NewInternalHandler(reconciler service.ReconcilerService, logger zerolog.Logger) *InternalHandler {
	return &InternalHandler{reconciler: reconciler, logger: logger}
}

// RegisterRoutes mounts internal routes behind the scheduler auth middleware.
func (h *InternalHandler) RegisterRoutes(mux *http.ServeMux, schedulerMw func(http.Handler) http.Handler) {
	mux.Handle("POST /internal/reconcile", schedulerMw(http.HandlerFunc(h.reconcile)))
	mux.Handle("GET /internal/reviews", schedulerMw(http.HandlerFunc(h.listReviews)))
	mux.Handle("POST /internal/reviews/{id}/resolve", schedulerMw(http.HandlerFunc(h.resolveReview)))
}

// reconcile godoc
// @Summary Run a reconciliation sweep now
// @Tags internal
// @Produce json
// @Success 200 {object} service.ReconcileResult
// @Failure 503 {object} dto.ErrorResponse "storage unavailable, nothing was downgraded"
// @Router /internal/reconcile [post]
func (h *InternalHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunReconciliation(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listReviews godoc
// @Summary List reconciliation items awaiting manual review
// @Tags internal
// @Produce json
// @Param limit query int false "Max items (default 100)"
// @Success 200 {array} model.SubscriptionReview
// @Router /internal/reviews [get]
func (h *InternalHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	reviews, err := h.reconciler.ListPendingReviews(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if reviews == nil {
		reviews = []model.SubscriptionReview{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// resolveReview godoc
// @Summary Mark a review item as handled
// @Tags internal
// @Param id path string true "Review ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /internal/reviews/{id}/resolve [post]
func (h *InternalHandler) resolveReview(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.ResolveReview(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
