package model

import "time"

// Subscription statuses as reported by the billing provider, plus "expired"
// which is only ever written by the reconciler.
const (
	StatusActive            = "active"
	StatusPastDue           = "past_due"
	StatusCanceled          = "canceled"
	StatusUnpaid            = "unpaid"
	StatusIncompleteExpired = "incomplete_expired"
	StatusExpired           = "expired"
)

// UserProfile is the per-user document. Usage and subscription state are
// embedded in it and share its lifetime.
type UserProfile struct {
	UserID       string            `db:"user_id" json:"user_id"`
	Email        string            `db:"email" json:"email"`
	Subscription SubscriptionState `json:"subscription"`
	Usage        *UsageCounter     `json:"usage_counter,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// SubscriptionState mirrors what the billing provider last told us about the
// user's subscription. Period timestamps are epoch seconds.
type SubscriptionState struct {
	Tier               Tier   `db:"subscription_tier" json:"subscription_tier"`
	Status             string `db:"subscription_status" json:"subscription_status"`
	SubscriptionID     string `db:"subscription_id" json:"subscription_id,omitempty"`
	PriceID            string `db:"price_id" json:"price_id,omitempty"`
	CurrentPeriodStart int64  `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   int64  `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd  bool   `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt         *int64 `db:"canceled_at" json:"canceled_at,omitempty"`
	StripeCustomerID   string `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
}

// SubscriptionUpdate is a field-level merge into SubscriptionState. Nil
// fields are left untouched in storage.
type SubscriptionUpdate struct {
	Tier               *Tier
	Status             *string
	SubscriptionID     *string
	PriceID            *string
	CurrentPeriodStart *int64
	CurrentPeriodEnd   *int64
	CancelAtPeriodEnd  *bool
	CanceledAt         *int64
}

// IsEmpty reports whether the update would not change any field.
func (u SubscriptionUpdate) IsEmpty() bool {
	return u.Tier == nil && u.Status == nil && u.SubscriptionID == nil && u.PriceID == nil &&
		u.CurrentPeriodStart == nil && u.CurrentPeriodEnd == nil && u.CancelAtPeriodEnd == nil &&
		u.CanceledAt == nil
}

// Apply merges the update into s.
func (u SubscriptionUpdate) Apply(s *SubscriptionState) {
	if u.Tier != nil {
		s.Tier = *u.Tier
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.SubscriptionID != nil {
		s.SubscriptionID = *u.SubscriptionID
	}
	if u.PriceID != nil {
		s.PriceID = *u.PriceID
	}
	if u.CurrentPeriodStart != nil {
		s.CurrentPeriodStart = *u.CurrentPeriodStart
	}
	if u.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = *u.CurrentPeriodEnd
	}
	if u.CancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *u.CancelAtPeriodEnd
	}
	if u.CanceledAt != nil {
		v := *u.CanceledAt
		s.CanceledAt = &v
	}
}
