package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/dto"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/middleware"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP response.
func statusFor(err error) (int, dto.ErrorResponse) {
	var quota *service.QuotaExceededError
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &quota):
		status := http.StatusTooManyRequests
		if quota.Reason == service.ReasonInactiveSubscription {
			status = http.StatusForbidden
		}
		remaining, limit := quota.Remaining, quota.Limit
		return status, dto.ErrorResponse{Error: "quota exceeded", Reason: quota.Reason, Remaining: &remaining, Limit: &limit}
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"}
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, dto.ErrorResponse{Error: "upstream service failed", Retryable: true}
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: "storage unavailable", Retryable: true}
	case errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "invalid signature"}
	case errors.As(err, &verr):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "validation failed: " + verr.Error()}
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrProfileNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "not found"}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON payload: %v", service.ErrInvalidInput, err)
	}
	return validate.Struct(dst)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	return userID, true
}
