package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, email string) string {
	t.Helper()
	claims := util.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser, gotEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserID(r.Context())
		gotEmail = UserEmail(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware(testSecret, zerolog.Nop())(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, "user-1", "a@example.com"), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.NotContains(t, rec.Body.String(), "token")
			}
		})
	}
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "a@example.com", gotEmail)
}

func TestLoggerMiddlewareSetsRequestID(t *testing.T) {
	h := LoggerMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestSchedulerAuthMiddleware(t *testing.T) {
	validator := func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if audience != "https://svc/internal" {
			return nil, errors.New("bad audience")
		}
		switch token {
		case "good":
			return &idtoken.Payload{Claims: map[string]interface{}{"email": "scheduler@proj.iam.gserviceaccount.com"}}, nil
		case "other":
			return &idtoken.Payload{Claims: map[string]interface{}{"email": "someone@else.com"}}, nil
		}
		return nil, errors.New("invalid token")
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		dev      bool
		audience string
		header   string
		status   int
	}{
		{"dev bypass", true, "", "", http.StatusOK},
		{"unconfigured", false, "", "Bearer good", http.StatusInternalServerError},
		{"missing header", false, "https://svc/internal", "", http.StatusUnauthorized},
		{"invalid token", false, "https://svc/internal", "Bearer nope", http.StatusUnauthorized},
		{"wrong account", false, "https://svc/internal", "Bearer other", http.StatusForbidden},
		{"valid", false, "https://svc/internal", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := SchedulerAuthMiddleware(tt.dev, tt.audience, "scheduler@proj.iam.gserviceaccount.com", validator, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
