package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/metrics"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/util"

	"github.com/rs/zerolog"
)

// Decision is the quota guard's answer for one action.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Reason    string `json:"reason,omitempty"`
}

// Decide is the pure authorization rule. Paid tiers must be active to keep
// their limits; a lapsed paid user is denied even with headroom left.
func Decide(tier model.Tier, status string, limits model.TierLimits, counter model.UsageCounter, action model.UsageAction) Decision {
	limit := limits.For(action)
	used := counter.Count(action)
	if tier.IsPaid() && status != model.StatusActive {
		return Decision{Remaining: 0, Limit: limit, Used: used, Reason: ReasonInactiveSubscription}
	}
	remaining := max(0, limit-used)
	if remaining <= 0 {
		return Decision{Remaining: 0, Limit: limit, Used: used, Reason: ReasonLimitReached}
	}
	return Decision{Allowed: true, Remaining: remaining, Limit: limit, Used: used}
}

// ActionUsage is one row of a usage report.
type ActionUsage struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// UsageStatus is the user-facing usage report.
type UsageStatus struct {
	Tier              model.Tier  `json:"tier"`
	Status            string      `json:"status"`
	ImageUploads      ActionUsage `json:"imageUploads"`
	OutfitGenerations ActionUsage `json:"outfitGenerations"`
	WeekStart         time.Time   `json:"weekStart"`
	ResetsOn          time.Time   `json:"resetsOn"`
}

// QuotaService gates metered actions on the caller's tier and weekly usage.
type QuotaService interface {
	// Authorize checks action against userID's counter without consuming.
	Authorize(ctx context.Context, userID string, tier model.Tier, status string, action model.UsageAction) (Decision, error)
	// Guard authorizes action, runs fn, and consumes one unit only if fn
	// succeeds. A denial is returned as *QuotaExceededError.
	Guard(ctx context.Context, userID string, action model.UsageAction, fn func(ctx context.Context) error) error
	CheckAndConsumeImageUploadQuota(ctx context.Context, userID string, fn func(ctx context.Context) error) error
	CheckAndConsumeOutfitGenerationQuota(ctx context.Context, userID string, fn func(ctx context.Context) error) error
	GetUsageStatus(ctx context.Context, userID string) (*UsageStatus, error)
}

type quotaService struct {
	profiles repository.ProfileRepository
	usage    UsageService
	policy   *Policy
	now      func() time.Time
	logger   zerolog.Logger
}

// NewQuotaService wires the guard. now is the clock; pass time.Now in production.
func NewQuotaService(profiles repository.ProfileRepository, usage UsageService, policy *Policy, now func() time.Time, logger zerolog.Logger) QuotaService {
	return &quotaService{
		profiles: profiles,
		usage:    usage,
		policy:   policy,
		now:      now,
		logger:   logger.With().Str("service", "QuotaService").Logger(),
	}
}

func (s *quotaService) Authorize(ctx context.Context, userID string, tier model.Tier, status string, action model.UsageAction) (Decision, error) {
	if !action.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown usage action %q", ErrInvalidInput, action)
	}
	counter, err := s.usage.CurrentCounter(ctx, userID, s.now())
	if err != nil {
		metrics.QuotaDecisionsTotal.WithLabelValues(string(action), "error").Inc()
		return Decision{}, err
	}
	d := Decide(tier, status, s.policy.LimitsFor(tier), counter, action)
	metrics.QuotaDecisionsTotal.WithLabelValues(string(action), outcomeLabel(d)).Inc()
	return d, nil
}

func outcomeLabel(d Decision) string {
	switch d.Reason {
	case ReasonInactiveSubscription:
		return "inactive_subscription"
	case ReasonLimitReached:
		return "limit_reached"
	}
	return "allowed"
}

// entitlement returns the stored tier and status. A user without a profile
// is on the free tier; the counter row is created on first read.
func (s *quotaService) entitlement(ctx context.Context, userID string) (model.Tier, string, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.TierFree, "", nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load profile for quota check")
		return "", "", err
	}
	tier := p.Subscription.Tier
	if _, ok := model.ParseTier(string(tier)); !ok {
		tier = model.TierFree
	}
	return tier, p.Subscription.Status, nil
}

func (s *quotaService) Guard(ctx context.Context, userID string, action model.UsageAction, fn func(ctx context.Context) error) error {
	if userID == "" {
		return ErrUnauthorized
	}
	tier, status, err := s.entitlement(ctx, userID)
	if err != nil {
		return err
	}
	d, err := s.Authorize(ctx, userID, tier, status, action)
	if err != nil {
		return err
	}
	if !d.Allowed {
		s.logger.Info().
			Str("user_id", userID).
			Str("action", string(action)).
			Str("tier", string(tier)).
			Str("reason", d.Reason).
			Msg("Quota denied")
		return &QuotaExceededError{Action: action, Reason: d.Reason, Remaining: d.Remaining, Limit: d.Limit}
	}

	if err := fn(ctx); err != nil {
		return err
	}

	// A failure here under-counts by one; the action already succeeded and
	// its result is returned to the caller.
	if _, err := s.usage.Increment(ctx, userID, action); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("action", string(action)).Msg("Usage not recorded after successful action")
		return nil
	}
	metrics.UsageConsumedTotal.WithLabelValues(string(action)).Inc()
	return nil
}

func (s *quotaService) CheckAndConsumeImageUploadQuota(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	return s.Guard(ctx, userID, model.ActionImageUpload, fn)
}

func (s *quotaService) CheckAndConsumeOutfitGenerationQuota(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	return s.Guard(ctx, userID, model.ActionOutfitGeneration, fn)
}

func (s *quotaService) GetUsageStatus(ctx context.Context, userID string) (*UsageStatus, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	tier, status, err := s.entitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	counter, err := s.usage.CurrentCounter(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	limits := s.policy.LimitsFor(tier)
	row := func(action model.UsageAction) ActionUsage {
		d := Decide(tier, status, limits, counter, action)
		return ActionUsage{Used: d.Used, Remaining: d.Remaining, Total: d.Limit}
	}
	weekStart := time.UnixMilli(counter.WeekStart).UTC()
	return &UsageStatus{
		Tier:              tier,
		Status:            status,
		ImageUploads:      row(model.ActionImageUpload),
		OutfitGenerations: row(model.ActionOutfitGeneration),
		WeekStart:         weekStart,
		ResetsOn:          weekStart.Add(util.Week),
	}, nil
}
