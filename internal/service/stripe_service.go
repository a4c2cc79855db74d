package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/rs/zerolog"
)

// BillingConfig is what clients need to render the pricing page.
type BillingConfig struct {
	PublishableKey string         `json:"publishableKey"`
	Prices         []BillingPrice `json:"prices"`
}

// SubscriptionCheckout is returned when a subscription is created and still
// needs the first payment confirmed client-side.
type SubscriptionCheckout struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
	Status         string `json:"status"`
}

// StripeService drives the user-initiated side of the subscription lifecycle.
// Provider-initiated changes arrive through BillingEventService.
type StripeService struct {
	billing        BillingProvider
	profiles       repository.ProfileRepository
	priceTiers     map[string]model.Tier
	lookupKeys     []string
	publishableKey string
	logger         zerolog.Logger
}

// NewStripeService copies priceTiers so later mutation by the caller has no effect.
func NewStripeService(billing BillingProvider, profiles repository.ProfileRepository, priceTiers map[string]model.Tier, lookupKeys []string, publishableKey string, logger zerolog.Logger) *StripeService {
	tiers := make(map[string]model.Tier, len(priceTiers))
	for k, v := range priceTiers {
		tiers[k] = v
	}
	return &StripeService{
		billing:        billing,
		profiles:       profiles,
		priceTiers:     tiers,
		lookupKeys:     append([]string(nil), lookupKeys...),
		publishableKey: publishableKey,
		logger:         logger.With().Str("service", "StripeService").Logger(),
	}
}

// GetConfig lists the purchasable prices with their tier.
func (s *StripeService) GetConfig(ctx context.Context) (*BillingConfig, error) {
	prices, err := s.billing.ListPrices(ctx, s.lookupKeys)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list Stripe prices")
		return nil, upstream("billing", err)
	}
	for i := range prices {
		if t, ok := s.priceTiers[prices[i].ID]; ok {
			prices[i].Tier = string(t)
		}
	}
	return &BillingConfig{PublishableKey: s.publishableKey, Prices: prices}, nil
}

func (s *StripeService) profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// GetOrCreateCustomer returns the user's Stripe customer, creating one if the
// profile has none or the stored one was deleted at Stripe.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	p, err := s.profile(ctx, userID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return "", err
	}
	if p != nil && p.Subscription.StripeCustomerID != "" {
		exists, err := s.billing.CustomerExists(ctx, p.Subscription.StripeCustomerID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to retrieve Stripe customer")
			return "", upstream("billing", err)
		}
		if exists {
			return p.Subscription.StripeCustomerID, nil
		}
		s.logger.Warn().Str("user_id", userID).Str("stripe_customer_id", p.Subscription.StripeCustomerID).Msg("Stored Stripe customer no longer exists, creating a new one")
	}
	if email == "" && p != nil {
		email = p.Email
	}

	customerID, err := s.billing.CreateCustomer(ctx, userID, email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe customer")
		return "", upstream("billing", err)
	}
	if err := s.profiles.SetStripeCustomerID(ctx, userID, email, customerID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store stripe customer id in user_profiles")
		return "", err
	}
	return customerID, nil
}

// CreateSubscription starts a subscription to priceID in the incomplete state
// and records it on the profile. The paid tier is only written when the
// provider already reports the subscription active; otherwise it arrives
// with the webhook that confirms payment.
func (s *StripeService) CreateSubscription(ctx context.Context, userID, email, priceID string) (*SubscriptionCheckout, error) {
	tier, ok := s.priceTiers[priceID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown price %s", ErrInvalidInput, priceID)
	}
	customerID, err := s.GetOrCreateCustomer(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	sub, err := s.billing.CreateSubscription(ctx, customerID, priceID, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("price_id", priceID).Msg("Failed to create Stripe subscription")
		return nil, upstream("billing", err)
	}
	if sub.CurrentPeriodEnd == 0 && sub.LatestInvoiceID != "" {
		start, end, err := s.billing.InvoicePeriod(ctx, sub.LatestInvoiceID)
		if err != nil {
			s.logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to fetch invoice period for new subscription")
		} else {
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd = start, end
		}
	}

	var granted *model.Tier
	if sub.Status == model.StatusActive {
		granted = &tier
	}
	update := subscriptionUpdateFrom(sub, granted)
	if err := s.profiles.UpdateSubscription(ctx, userID, update); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", sub.ID).Msg("Failed to store new subscription")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("subscription_id", sub.ID).Str("tier", string(tier)).Str("status", sub.Status).Msg("Subscription created")
	return &SubscriptionCheckout{SubscriptionID: sub.ID, ClientSecret: sub.ClientSecret, Status: sub.Status}, nil
}

// CreateSetupIntent returns a client secret for updating the payment method.
func (s *StripeService) CreateSetupIntent(ctx context.Context, userID string) (string, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.Subscription.StripeCustomerID == "" {
		return "", fmt.Errorf("%w: no stripe customer for user %s", ErrInvalidInput, userID)
	}
	secret, err := s.billing.CreateSetupIntent(ctx, p.Subscription.StripeCustomerID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create setup intent")
		return "", upstream("billing", err)
	}
	return secret, nil
}

// SetCancelAtPeriodEnd cancels (true) or resumes (false) the user's
// subscription at the end of the current period. subscriptionID must match
// the one stored on the profile.
func (s *StripeService) SetCancelAtPeriodEnd(ctx context.Context, userID, subscriptionID string, cancel bool) error {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return err
	}
	if p.Subscription.SubscriptionID == "" || p.Subscription.SubscriptionID != subscriptionID {
		return fmt.Errorf("subscription %s for user %s: %w", subscriptionID, userID, ErrNotFound)
	}
	sub, err := s.billing.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", subscriptionID).Bool("cancel", cancel).Msg("Failed to update Stripe subscription")
		return upstream("billing", err)
	}
	flag := sub.CancelAtPeriodEnd
	if err := s.profiles.UpdateSubscription(ctx, userID, model.SubscriptionUpdate{CancelAtPeriodEnd: &flag}); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store cancel_at_period_end")
		return err
	}
	return nil
}

// GetSubscriptionStatus returns the stored subscription state. Users without
// a profile are reported on the free tier.
func (s *StripeService) GetSubscriptionStatus(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	p, err := s.profile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return &model.SubscriptionState{Tier: model.TierFree}, nil
	}
	if err != nil {
		return nil, err
	}
	st := p.Subscription
	if st.Tier == "" {
		st.Tier = model.TierFree
	}
	return &st, nil
}

// subscriptionUpdateFrom builds the field-level update for sub. tier is nil
// when the price is unmapped and the stored tier must be left alone.
func subscriptionUpdateFrom(sub *BillingSubscription, tier *model.Tier) model.SubscriptionUpdate {
	u := model.SubscriptionUpdate{
		Tier:              tier,
		Status:            &sub.Status,
		SubscriptionID:    &sub.ID,
		CancelAtPeriodEnd: &sub.CancelAtPeriodEnd,
	}
	if sub.PriceID != "" {
		u.PriceID = &sub.PriceID
	}
	if sub.CurrentPeriodEnd != 0 {
		u.CurrentPeriodStart = &sub.CurrentPeriodStart
		u.CurrentPeriodEnd = &sub.CurrentPeriodEnd
	}
	if sub.CanceledAt != 0 {
		u.CanceledAt = &sub.CanceledAt
	}
	return u
}
