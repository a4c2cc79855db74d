package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
)

var _ ProfileRepository = (*MemoryProfileRepo)(nil)

// MemoryProfileRepo is an in-process ProfileRepository used for local runs
// (PROFILE_STORE=memory) and tests. A single mutex gives every method the
// same atomicity the Postgres implementation gets from single statements.
type MemoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.UserProfile
	now      func() time.Time
}

// NewMemoryProfileRepo returns an empty in-memory store.
func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{profiles: make(map[string]*model.UserProfile), now: time.Now}
}

// Put stores a copy of p, replacing any existing profile. Seeding only.
func (r *MemoryProfileRepo) Put(p model.UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = cloneProfile(&p)
}

func cloneProfile(p *model.UserProfile) *model.UserProfile {
	c := *p
	if p.Usage != nil {
		u := *p.Usage
		c.Usage = &u
	}
	if p.Subscription.CanceledAt != nil {
		v := *p.Subscription.CanceledAt
		c.Subscription.CanceledAt = &v
	}
	return &c
}

func (r *MemoryProfileRepo) getOrCreate(userID string) *model.UserProfile {
	p, ok := r.profiles[userID]
	if !ok {
		now := r.now()
		p = &model.UserProfile{
			UserID:       userID,
			Subscription: model.SubscriptionState{Tier: model.TierFree},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		r.profiles[userID] = p
	}
	return p
}

func (r *MemoryProfileRepo) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (r *MemoryProfileRepo) ResetUsageIfStale(_ context.Context, userID string, weekStart int64) (model.UsageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.getOrCreate(userID)
	if p.Usage == nil || p.Usage.WeekStart < weekStart {
		p.Usage = &model.UsageCounter{WeekStart: weekStart}
		p.UpdatedAt = r.now()
	}
	return *p.Usage, nil
}

func (r *MemoryProfileRepo) IncrementUsage(_ context.Context, userID string, action model.UsageAction) (int, error) {
	if _, err := usageColumn(action); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return 0, fmt.Errorf("increment %s for user %s: %w", action, userID, ErrNotFound)
	}
	if p.Usage == nil {
		p.Usage = &model.UsageCounter{}
	}
	p.UpdatedAt = r.now()
	switch action {
	case model.ActionImageUpload:
		p.Usage.ImageUploads++
		return p.Usage.ImageUploads, nil
	default:
		p.Usage.OutfitGenerations++
		return p.Usage.OutfitGenerations, nil
	}
}

func (r *MemoryProfileRepo) SetStripeCustomerID(_ context.Context, userID, email, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.getOrCreate(userID)
	p.Subscription.StripeCustomerID = customerID
	if email != "" {
		p.Email = email
	}
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryProfileRepo) UpdateSubscription(_ context.Context, userID string, update model.SubscriptionUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("update subscription for user %s: %w", userID, ErrNotFound)
	}
	update.Apply(&p.Subscription)
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryProfileRepo) UpdateSubscriptionByCustomer(_ context.Context, customerID string, update model.SubscriptionUpdate) (int, error) {
	if update.IsEmpty() || customerID == "" {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.profiles {
		if p.Subscription.StripeCustomerID == customerID {
			update.Apply(&p.Subscription)
			p.UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

func (r *MemoryProfileRepo) ListLapsedPaid(_ context.Context, cutoff int64) ([]model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.UserProfile
	for _, p := range r.profiles {
		if p.Subscription.Tier.IsPaid() && p.Subscription.CurrentPeriodEnd <= cutoff {
			out = append(out, *cloneProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Subscription.CurrentPeriodEnd, out[j].Subscription.CurrentPeriodEnd
		if a != b {
			return a < b
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *MemoryProfileRepo) DowngradeToFree(_ context.Context, candidates []model.UserProfile) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var downgraded []string
	for _, c := range candidates {
		p, ok := r.profiles[c.UserID]
		if !ok || p.Subscription.Tier != c.Subscription.Tier || p.Subscription.CurrentPeriodEnd != c.Subscription.CurrentPeriodEnd {
			continue
		}
		if !p.Subscription.CancelAtPeriodEnd && p.Subscription.Status == model.StatusActive {
			continue
		}
		p.Subscription.Tier = model.TierFree
		p.Subscription.Status = model.StatusExpired
		p.UpdatedAt = r.now()
		downgraded = append(downgraded, c.UserID)
	}
	return downgraded, nil
}
