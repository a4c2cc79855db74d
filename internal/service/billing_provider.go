package service

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// BillingSubscription is the provider's view of a subscription, reduced to
// the fields entitlement state is derived from. Times are epoch seconds.
type BillingSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	CanceledAt         int64
	LatestInvoiceID    string
	ClientSecret       string
}

// BillingPrice is a purchasable plan as shown to clients.
type BillingPrice struct {
	ID          string `json:"id"`
	LookupKey   string `json:"lookupKey"`
	UnitAmount  int64  `json:"unitAmount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

// BillingProvider is the subset of the payment provider the service uses.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CustomerExists(ctx context.Context, customerID string) (bool, error)
	CreateSubscription(ctx context.Context, customerID, priceID, userID string) (*BillingSubscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*BillingSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*BillingSubscription, error)
	ListPrices(ctx context.Context, lookupKeys []string) ([]BillingPrice, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	// InvoicePeriod returns the service period an invoice covers.
	InvoicePeriod(ctx context.Context, invoiceID string) (start, end int64, err error)
}

type stripeProvider struct {
	sc *client.API
}

// NewStripeProvider returns a BillingProvider backed by the Stripe API.
func NewStripeProvider(secretKey string) BillingProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &stripeProvider{sc: sc}
}

func billingSubscriptionFromStripe(s *stripe.Subscription) *BillingSubscription {
	out := &BillingSubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CanceledAt:        s.CanceledAt,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.CurrentPeriodStart = item.CurrentPeriodStart
		out.CurrentPeriodEnd = item.CurrentPeriodEnd
	}
	if s.LatestInvoice != nil {
		out.LatestInvoiceID = s.LatestInvoice.ID
		if s.LatestInvoice.ConfirmationSecret != nil {
			out.ClientSecret = s.LatestInvoice.ConfirmationSecret.ClientSecret
		}
		if out.CurrentPeriodEnd == 0 {
			out.CurrentPeriodStart = s.LatestInvoice.PeriodStart
			out.CurrentPeriodEnd = s.LatestInvoice.PeriodEnd
		}
	}
	return out
}

func (p *stripeProvider) CreateCustomer(_ context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	cust, err := p.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (p *stripeProvider) CustomerExists(_ context.Context, customerID string) (bool, error) {
	cust, err := p.sc.Customers.Get(customerID, nil)
	if err != nil {
		if se, ok := err.(*stripe.Error); ok && se.HTTPStatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("retrieve stripe customer %s: %w", customerID, err)
	}
	return !cust.Deleted, nil
}

func (p *stripeProvider) CreateSubscription(_ context.Context, customerID, priceID, userID string) (*BillingSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(customerID),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: map[string]string{"user_id": userID},
	}
	params.AddExpand("latest_invoice.confirmation_secret")
	sub, err := p.sc.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}
	return billingSubscriptionFromStripe(sub), nil
}

func (p *stripeProvider) GetSubscription(_ context.Context, subscriptionID string) (*BillingSubscription, error) {
	sub, err := p.sc.Subscriptions.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe subscription %s: %w", subscriptionID, err)
	}
	return billingSubscriptionFromStripe(sub), nil
}

func (p *stripeProvider) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) (*BillingSubscription, error) {
	sub, err := p.sc.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	})
	if err != nil {
		return nil, fmt.Errorf("update stripe subscription %s: %w", subscriptionID, err)
	}
	return billingSubscriptionFromStripe(sub), nil
}

func (p *stripeProvider) ListPrices(_ context.Context, lookupKeys []string) ([]BillingPrice, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice(lookupKeys),
		Active:     stripe.Bool(true),
	}
	params.AddExpand("data.product")
	it := p.sc.Prices.List(params)
	var out []BillingPrice
	for it.Next() {
		pr := it.Price()
		bp := BillingPrice{
			ID:         pr.ID,
			LookupKey:  pr.LookupKey,
			UnitAmount: pr.UnitAmount,
			Currency:   string(pr.Currency),
		}
		if pr.Recurring != nil {
			bp.Interval = string(pr.Recurring.Interval)
		}
		if pr.Product != nil {
			bp.ProductName = pr.Product.Name
		}
		out = append(out, bp)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list stripe prices: %w", err)
	}
	return out, nil
}

func (p *stripeProvider) CreateSetupIntent(_ context.Context, customerID string) (string, error) {
	si, err := p.sc.SetupIntents.New(&stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	})
	if err != nil {
		return "", fmt.Errorf("create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

func (p *stripeProvider) InvoicePeriod(_ context.Context, invoiceID string) (int64, int64, error) {
	inv, err := p.sc.Invoices.Get(invoiceID, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("retrieve stripe invoice %s: %w", invoiceID, err)
	}
	return inv.PeriodStart, inv.PeriodEnd, nil
}
