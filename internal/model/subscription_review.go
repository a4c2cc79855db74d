package model

import "time"

// Review states for SubscriptionReview.
const (
	ReviewPending  = "pending"
	ReviewResolved = "resolved"
)

// SubscriptionReview is a paid profile whose period ended while the provider
// still reported it active and renewing. It is persisted for operator follow-up.
type SubscriptionReview struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Tier         Tier      `db:"subscription_tier" json:"tier"`
	Status       string    `db:"subscription_status" json:"status"`
	PeriodEnd    int64     `db:"period_end" json:"period_end"`
	ReviewStatus string    `db:"review_status" json:"review_status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
