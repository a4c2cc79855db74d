package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/metrics"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/pubsub"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/util"

	"github.com/rs/zerolog"
)

// ReconcileResult reports one sweep. Skipped holds lapsed profiles that were
// changed by a concurrent writer between the read and the downgrade.
type ReconcileResult struct {
	RanAt             time.Time                  `json:"ran_at"`
	Downgraded        []string                   `json:"downgraded"`
	NeedsManualReview []model.SubscriptionReview `json:"needs_manual_review"`
	Skipped           []string                   `json:"skipped,omitempty"`
}

// ReconcilerService corrects paid entitlements whose billing period ended
// without the provider telling us about it.
type ReconcilerService interface {
	// Reconcile sweeps paid profiles whose period ended at or before now.
	// Downgrades are all-or-nothing: on error nothing was downgraded.
	Reconcile(ctx context.Context, now time.Time) (*ReconcileResult, error)
	// RunReconciliation is Reconcile at the current time.
	RunReconciliation(ctx context.Context) (*ReconcileResult, error)
	// Run sweeps daily at 00:00 UTC until ctx is cancelled.
	Run(ctx context.Context)
	ListPendingReviews(ctx context.Context, limit int) ([]model.SubscriptionReview, error)
	ResolveReview(ctx context.Context, id string) error
}

type reconcilerService struct {
	profiles    repository.ProfileRepository
	reviews     repository.ReviewRepository
	publisher   pubsub.Publisher
	reviewTopic string
	now         func() time.Time
	logger      zerolog.Logger
}

// NewReconcilerService wires the reconciler. publisher may be nil or
// reviewTopic empty, in which case reports are only logged.
func NewReconcilerService(profiles repository.ProfileRepository, reviews repository.ReviewRepository, publisher pubsub.Publisher, reviewTopic string, now func() time.Time, logger zerolog.Logger) ReconcilerService {
	return &reconcilerService{
		profiles:    profiles,
		reviews:     reviews,
		publisher:   publisher,
		reviewTopic: reviewTopic,
		now:         now,
		logger:      logger.With().Str("service", "ReconcilerService").Logger(),
	}
}

func (s *reconcilerService) Reconcile(ctx context.Context, now time.Time) (*ReconcileResult, error) {
	lapsed, err := s.profiles.ListLapsedPaid(ctx, now.Unix())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list lapsed paid profiles")
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var expired []model.UserProfile
	var review []model.UserProfile
	for _, p := range lapsed {
		if p.Subscription.CancelAtPeriodEnd || p.Subscription.Status != model.StatusActive {
			expired = append(expired, p)
		} else {
			review = append(review, p)
		}
	}

	downgraded, err := s.profiles.DowngradeToFree(ctx, expired)
	if err != nil {
		s.logger.Error().Err(err).Int("candidates", len(expired)).Msg("Downgrade batch failed, nothing was downgraded")
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &ReconcileResult{RanAt: now.UTC(), Downgraded: downgraded}
	done := make(map[string]bool, len(downgraded))
	for _, id := range downgraded {
		done[id] = true
	}
	for _, p := range expired {
		if !done[p.UserID] {
			result.Skipped = append(result.Skipped, p.UserID)
		}
	}
	for _, p := range review {
		result.NeedsManualReview = append(result.NeedsManualReview, model.SubscriptionReview{
			UserID:       p.UserID,
			Tier:         p.Subscription.Tier,
			Status:       p.Subscription.Status,
			PeriodEnd:    p.Subscription.CurrentPeriodEnd,
			ReviewStatus: model.ReviewPending,
		})
	}

	s.recordReviews(ctx, result.NeedsManualReview)
	s.publishReport(ctx, result)

	metrics.ReconcileRunsTotal.WithLabelValues("success").Inc()
	metrics.ReconcileDowngradesTotal.Add(float64(len(downgraded)))
	metrics.ReconcileReviewsTotal.Add(float64(len(result.NeedsManualReview)))
	s.logger.Info().
		Int("lapsed", len(lapsed)).
		Int("downgraded", len(result.Downgraded)).
		Int("needs_manual_review", len(result.NeedsManualReview)).
		Int("skipped", len(result.Skipped)).
		Msg("Subscription reconciliation completed")
	return result, nil
}

func (s *reconcilerService) RunReconciliation(ctx context.Context) (*ReconcileResult, error) {
	return s.Reconcile(ctx, s.now())
}

// recordReviews persists review items. Failures are logged; the downgrade
// batch has already committed and the next sweep flags the same profiles.
func (s *reconcilerService) recordReviews(ctx context.Context, items []model.SubscriptionReview) {
	if s.reviews == nil {
		return
	}
	for i := range items {
		created, err := s.reviews.Create(ctx, &items[i])
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", items[i].UserID).Msg("Failed to record subscription review")
			continue
		}
		if created {
			s.logger.Warn().
				Str("user_id", items[i].UserID).
				Str("tier", string(items[i].Tier)).
				Int64("period_end", items[i].PeriodEnd).
				Msg("Paid period ended but subscription still active, flagged for review")
		}
	}
}

func (s *reconcilerService) publishReport(ctx context.Context, result *ReconcileResult) {
	if s.publisher == nil || s.reviewTopic == "" {
		return
	}
	if len(result.Downgraded) == 0 && len(result.NeedsManualReview) == 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal reconciliation report")
		return
	}
	id, err := s.publisher.Publish(ctx, s.reviewTopic, data)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", s.reviewTopic).Msg("Failed to publish reconciliation report")
		return
	}
	s.logger.Debug().Str("message_id", id).Str("topic", s.reviewTopic).Msg("Published reconciliation report")
}

func (s *reconcilerService) Run(ctx context.Context) {
	s.logger.Info().Msg("Subscription reconciler started")
	for {
		now := s.now()
		timer := time.NewTimer(util.NextMidnightUTC(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Subscription reconciler stopped")
			return
		case <-timer.C:
			if _, err := s.RunReconciliation(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled reconciliation failed")
			}
		}
	}
}

func (s *reconcilerService) ListPendingReviews(ctx context.Context, limit int) ([]model.SubscriptionReview, error) {
	if s.reviews == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.reviews.ListPending(ctx, limit)
}

func (s *reconcilerService) ResolveReview(ctx context.Context, id string) error {
	if s.reviews == nil {
		return ErrNotFound
	}
	return s.reviews.Resolve(ctx, id)
}
