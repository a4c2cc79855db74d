package service

import (
	"context"
	"testing"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeFixture() (*StripeService, *repository.MemoryProfileRepo, *fakeBilling) {
	repo := repository.NewMemoryProfileRepo()
	billing := newFakeBilling()
	svc := NewStripeService(billing, repo, testPriceTiers, []string{"monthly_basic", "monthly_premium"}, "pk_test", nopLogger)
	return svc, repo, billing
}

func TestGetOrCreateCustomerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, billing := newStripeFixture()

	first, err := svc.GetOrCreateCustomer(ctx, "u1", "ana@example.com")
	require.NoError(t, err)
	second, err := svc.GetOrCreateCustomer(ctx, "u1", "ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, billing.customerCalls)

	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, p.Subscription.StripeCustomerID)
	assert.Equal(t, "ana@example.com", p.Email)
}

func TestGetOrCreateCustomerReplacesDeletedCustomer(t *testing.T) {
	ctx := context.Background()
	svc, repo, billing := newStripeFixture()
	require.NoError(t, repo.SetStripeCustomerID(ctx, "u1", "ana@example.com", "cus_gone"))

	id, err := svc.GetOrCreateCustomer(ctx, "u1", "")
	require.NoError(t, err)
	assert.NotEqual(t, "cus_gone", id)
	assert.Equal(t, 1, billing.customerCalls)
}

func TestGetOrCreateCustomerUpstreamFailure(t *testing.T) {
	svc, _, billing := newStripeFixture()
	billing.failCreate = true
	_, err := svc.GetOrCreateCustomer(context.Background(), "u1", "ana@example.com")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newStripeFixture()

	checkout, err := svc.CreateSubscription(ctx, "u1", "ana@example.com", "price_premium")
	require.NoError(t, err)
	assert.Equal(t, "pi_secret_123", checkout.ClientSecret)
	assert.Equal(t, "incomplete", checkout.Status)

	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	st := p.Subscription
	assert.Equal(t, model.TierFree, st.Tier, "tier waits for the payment webhook")
	assert.Equal(t, "incomplete", st.Status)
	assert.Equal(t, "price_premium", st.PriceID)
	assert.Equal(t, checkout.SubscriptionID, st.SubscriptionID)
	assert.Equal(t, int64(1_752_592_000), st.CurrentPeriodEnd, "period falls back to the first invoice")
}

func TestCreateSubscriptionActiveGrantsTier(t *testing.T) {
	ctx := context.Background()
	svc, repo, billing := newStripeFixture()
	billing.createStatus = model.StatusActive

	_, err := svc.CreateSubscription(ctx, "u1", "ana@example.com", "price_basic")
	require.NoError(t, err)

	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TierBasic, p.Subscription.Tier)
	assert.Equal(t, model.StatusActive, p.Subscription.Status)
}

func TestIncompleteCheckoutKeepsFreeQuota(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.seed("u1", model.TierFree, "", 1, 0)
	svc := NewStripeService(newFakeBilling(), f.repo, testPriceTiers, nil, "pk_test", nopLogger)

	_, err := svc.CreateSubscription(ctx, "u1", "ana@example.com", "price_premium")
	require.NoError(t, err)

	require.NoError(t, f.quota.CheckAndConsumeImageUploadQuota(ctx, "u1", succeed))
	usage, err := f.quota.GetUsageStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, usage.Tier)
	assert.Equal(t, ActionUsage{Used: 2, Remaining: 6, Total: 8}, usage.ImageUploads)
}

func TestCreateSubscriptionUnknownPrice(t *testing.T) {
	svc, _, billing := newStripeFixture()
	_, err := svc.CreateSubscription(context.Background(), "u1", "ana@example.com", "price_nope")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, billing.customerCalls)
}

func TestSetCancelAtPeriodEnd(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newStripeFixture()
	checkout, err := svc.CreateSubscription(ctx, "u1", "ana@example.com", "price_basic")
	require.NoError(t, err)

	require.NoError(t, svc.SetCancelAtPeriodEnd(ctx, "u1", checkout.SubscriptionID, true))
	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Subscription.CancelAtPeriodEnd)

	require.NoError(t, svc.SetCancelAtPeriodEnd(ctx, "u1", checkout.SubscriptionID, false))
	p, err = repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.Subscription.CancelAtPeriodEnd)

	err = svc.SetCancelAtPeriodEnd(ctx, "u1", "sub_someone_else", true)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.SetCancelAtPeriodEnd(ctx, "nobody", checkout.SubscriptionID, true)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCreateSetupIntentNeedsCustomer(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newStripeFixture()
	repo.Put(model.UserProfile{UserID: "u1"})

	_, err := svc.CreateSetupIntent(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, repo.SetStripeCustomerID(ctx, "u1", "", "cus_9"))
	secret, err := svc.CreateSetupIntent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "seti_secret_cus_9", secret)
}

func TestGetConfigTagsTiers(t *testing.T) {
	svc, _, billing := newStripeFixture()
	billing.prices = []BillingPrice{{ID: "price_basic", LookupKey: "monthly_basic"}, {ID: "price_other"}}

	cfg, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pk_test", cfg.PublishableKey)
	require.Len(t, cfg.Prices, 2)
	assert.Equal(t, "basic", cfg.Prices[0].Tier)
	assert.Empty(t, cfg.Prices[1].Tier)
}

func TestGetSubscriptionStatusWithoutProfile(t *testing.T) {
	svc, _, _ := newStripeFixture()
	st, err := svc.GetSubscriptionStatus(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, st.Tier)
}
