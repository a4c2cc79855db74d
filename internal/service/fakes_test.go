package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/rs/zerolog"
)

var nopLogger = zerolog.Nop()

// clock is a settable test clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errBoom = errors.New("boom")

// flakyProfileRepo injects storage failures into the in-memory store.
type flakyProfileRepo struct {
	*repository.MemoryProfileRepo
	failReads     bool
	failDowngrade bool
	failUpdates   bool
	writes        int
}

func newFlakyProfileRepo() *flakyProfileRepo {
	return &flakyProfileRepo{MemoryProfileRepo: repository.NewMemoryProfileRepo()}
}

func storageErr() error {
	return fmt.Errorf("fetch: %w: %w", repository.ErrStorageUnavailable, errBoom)
}

func (r *flakyProfileRepo) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if r.failReads {
		return nil, storageErr()
	}
	return r.MemoryProfileRepo.GetProfile(ctx, userID)
}

func (r *flakyProfileRepo) ResetUsageIfStale(ctx context.Context, userID string, weekStart int64) (model.UsageCounter, error) {
	if r.failReads {
		return model.UsageCounter{}, storageErr()
	}
	return r.MemoryProfileRepo.ResetUsageIfStale(ctx, userID, weekStart)
}

func (r *flakyProfileRepo) IncrementUsage(ctx context.Context, userID string, action model.UsageAction) (int, error) {
	r.writes++
	return r.MemoryProfileRepo.IncrementUsage(ctx, userID, action)
}

func (r *flakyProfileRepo) UpdateSubscriptionByCustomer(ctx context.Context, customerID string, update model.SubscriptionUpdate) (int, error) {
	if r.failUpdates {
		return 0, storageErr()
	}
	r.writes++
	return r.MemoryProfileRepo.UpdateSubscriptionByCustomer(ctx, customerID, update)
}

func (r *flakyProfileRepo) DowngradeToFree(ctx context.Context, candidates []model.UserProfile) ([]string, error) {
	if r.failDowngrade {
		return nil, storageErr()
	}
	return r.MemoryProfileRepo.DowngradeToFree(ctx, candidates)
}

// fakeBilling is an in-memory BillingProvider.
type fakeBilling struct {
	mu            sync.Mutex
	customers     map[string]bool
	subs          map[string]*BillingSubscription
	invoices      map[string][2]int64
	prices        []BillingPrice
	failCreate    bool
	createStatus  string
	customerCalls int
	nextID        int
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		customers: map[string]bool{},
		subs:      map[string]*BillingSubscription{},
		invoices:  map[string][2]int64{},
	}
}

func (f *fakeBilling) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeBilling) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if f.failCreate {
		return "", errBoom
	}
	id := f.id("cus")
	f.customers[id] = true
	return id, nil
}

func (f *fakeBilling) CustomerExists(_ context.Context, customerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[customerID], nil
}

func (f *fakeBilling) CreateSubscription(_ context.Context, customerID, priceID, _ string) (*BillingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errBoom
	}
	status := f.createStatus
	if status == "" {
		status = "incomplete"
	}
	inv := f.id("in")
	f.invoices[inv] = [2]int64{1_750_000_000, 1_752_592_000}
	sub := &BillingSubscription{
		ID:              f.id("sub"),
		CustomerID:      customerID,
		Status:          status,
		PriceID:         priceID,
		LatestInvoiceID: inv,
		ClientSecret:    "pi_secret_123",
	}
	f.subs[sub.ID] = sub
	c := *sub
	return &c, nil
}

func (f *fakeBilling) GetSubscription(_ context.Context, id string) (*BillingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, errBoom
	}
	c := *sub
	return &c, nil
}

func (f *fakeBilling) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*BillingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, errBoom
	}
	sub.CancelAtPeriodEnd = cancel
	c := *sub
	return &c, nil
}

func (f *fakeBilling) ListPrices(_ context.Context, _ []string) ([]BillingPrice, error) {
	return append([]BillingPrice(nil), f.prices...), nil
}

func (f *fakeBilling) CreateSetupIntent(_ context.Context, customerID string) (string, error) {
	return "seti_secret_" + customerID, nil
}

func (f *fakeBilling) InvoicePeriod(_ context.Context, invoiceID string) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.invoices[invoiceID]
	if !ok {
		return 0, 0, errBoom
	}
	return p[0], p[1], nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if p.messages == nil {
		p.messages = map[string][][]byte{}
	}
	p.messages[topic] = append(p.messages[topic], payload)
	return fmt.Sprintf("msg-%d", len(p.messages[topic])), nil
}

type fakeStore struct {
	objects map[string]bool
	err     error
}

func (s *fakeStore) Bucket() string { return "wardrobe-images" }

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.objects[key], nil
}

func (s *fakeStore) PresignUpload(_ context.Context, key, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://uploads.example.com/" + key, nil
}

type fakeLabeler struct {
	labels []string
	err    error
	calls  int
}

func (l *fakeLabeler) DetectLabels(_ context.Context, _, _ string) ([]string, error) {
	l.calls++
	return l.labels, l.err
}

type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return g.text, g.err
}
