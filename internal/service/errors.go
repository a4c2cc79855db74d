package service

import (
	"errors"
	"fmt"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrUpstream         = errors.New("upstream collaborator failure")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// Quota denial reasons. Clients render different upgrade prompts for each.
const (
	ReasonInactiveSubscription = "inactive subscription"
	ReasonLimitReached         = "limit reached"
)

// QuotaExceededError is returned by the quota guard when an action is denied.
type QuotaExceededError struct {
	Action    model.UsageAction
	Reason    string
	Remaining int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %s", e.Action, e.Reason)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// UpstreamError wraps a failed or malformed collaborator response.
type UpstreamError struct {
	Collaborator string
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func upstream(collaborator string, err error) error {
	return &UpstreamError{Collaborator: collaborator, Err: err}
}
