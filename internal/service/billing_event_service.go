package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/metrics"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

// downgradeStatuses force the free tier regardless of the price on the event.
var downgradeStatuses = map[string]bool{
	model.StatusCanceled:          true,
	model.StatusUnpaid:            true,
	model.StatusIncompleteExpired: true,
}

// BillingEventResult describes what an accepted event did.
type BillingEventResult struct {
	EventID         string `json:"event_id"`
	EventType       string `json:"event_type"`
	Handled         bool   `json:"handled"`
	ProfilesUpdated int    `json:"profiles_updated"`
}

// BillingEventService ingests provider webhooks into entitlement state.
type BillingEventService interface {
	// ApplyBillingEvent verifies payload against signature and applies it.
	// ErrSignatureInvalid means nothing was written. Any other error means
	// the event should be redelivered.
	ApplyBillingEvent(ctx context.Context, payload []byte, signature string) (*BillingEventResult, error)
}

type billingEventService struct {
	profiles   repository.ProfileRepository
	billing    BillingProvider
	secret     string
	priceTiers map[string]model.Tier
	logger     zerolog.Logger
}

// NewBillingEventService copies priceTiers. billing may be nil, in which case
// events without an item period keep the stored period.
func NewBillingEventService(profiles repository.ProfileRepository, billing BillingProvider, signingSecret string, priceTiers map[string]model.Tier, logger zerolog.Logger) BillingEventService {
	tiers := make(map[string]model.Tier, len(priceTiers))
	for k, v := range priceTiers {
		tiers[k] = v
	}
	return &billingEventService{
		profiles:   profiles,
		billing:    billing,
		secret:     signingSecret,
		priceTiers: tiers,
		logger:     logger.With().Str("service", "BillingEventService").Logger(),
	}
}

func (s *billingEventService) ApplyBillingEvent(ctx context.Context, payload []byte, signature string) (*BillingEventResult, error) {
	started := time.Now()
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stripe webhook signature verification failed")
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	eventType := string(event.Type)
	defer func() {
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(started).Seconds())
	}()
	result := &BillingEventResult{EventID: event.ID, EventType: eventType}

	switch eventType {
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
	default:
		s.logger.Info().Str("event_id", event.ID).Str("event_type", eventType).Msg("Ignoring Stripe event type")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return result, nil
	}

	var ss stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
		// Signed by the provider, so a retry would carry the same body.
		s.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", eventType).Msg("Invalid subscription payload, acknowledging without changes")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "malformed").Inc()
		return result, nil
	}
	sub := billingSubscriptionFromStripe(&ss)
	if sub.CustomerID == "" {
		s.logger.Warn().Str("event_id", event.ID).Str("subscription_id", sub.ID).Msg("Subscription event has no customer")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "orphan").Inc()
		result.Handled = true
		return result, nil
	}
	s.fillPeriodFromInvoice(ctx, sub)

	update := subscriptionUpdateFrom(sub, s.tierFor(sub))
	n, err := s.profiles.UpdateSubscriptionByCustomer(ctx, sub.CustomerID, update)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Str("stripe_customer_id", sub.CustomerID).Msg("Failed to apply subscription event")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		return nil, err
	}

	result.Handled = true
	result.ProfilesUpdated = n
	log := s.logger.Info()
	if n == 0 {
		log = s.logger.Warn()
	}
	log.Str("event_id", event.ID).
		Str("event_type", eventType).
		Str("stripe_customer_id", sub.CustomerID).
		Str("subscription_id", sub.ID).
		Str("status", sub.Status).
		Int("profiles_updated", n).
		Msg("Applied subscription event")
	outcome := "applied"
	if n == 0 {
		outcome = "orphan"
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	return result, nil
}

// tierFor resolves the tier the event implies. A nil result leaves the stored
// tier untouched.
func (s *billingEventService) tierFor(sub *BillingSubscription) *model.Tier {
	if downgradeStatuses[sub.Status] {
		free := model.TierFree
		return &free
	}
	if t, ok := s.priceTiers[sub.PriceID]; ok {
		return &t
	}
	s.logger.Warn().Str("subscription_id", sub.ID).Str("price_id", sub.PriceID).Msg("Price is not mapped to a tier, leaving tier unchanged")
	return nil
}

func (s *billingEventService) fillPeriodFromInvoice(ctx context.Context, sub *BillingSubscription) {
	if sub.CurrentPeriodEnd != 0 || sub.LatestInvoiceID == "" || s.billing == nil {
		return
	}
	start, end, err := s.billing.InvoicePeriod(ctx, sub.LatestInvoiceID)
	if err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", sub.ID).Str("invoice_id", sub.LatestInvoiceID).Msg("Failed to fetch invoice period, keeping stored period")
		return
	}
	sub.CurrentPeriodStart, sub.CurrentPeriodEnd = start, end
}
