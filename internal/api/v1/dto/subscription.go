package dto

type CreateCustomerRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type CreateCustomerResponse struct {
	CustomerID string `json:"customerId"`
}

// CreateSubscriptionRequest starts a subscription for one of the configured prices.
type CreateSubscriptionRequest struct {
	PriceID string `json:"priceId" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type SetupIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// SubscriptionActionRequest is used by cancel and resume.
type SubscriptionActionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type SubscriptionActionResponse struct {
	SubscriptionID    string `json:"subscriptionId"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
}
