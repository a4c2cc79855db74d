package service

import (
	"context"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/util"

	"github.com/rs/zerolog"
)

// UsageService is the weekly usage counter store. Counters are reset lazily
// on read; nothing runs in the background to zero them.
type UsageService interface {
	// CurrentCounter returns userID's counter for the week containing now,
	// zeroing it first if it belongs to an earlier week.
	CurrentCounter(ctx context.Context, userID string, now time.Time) (model.UsageCounter, error)
	// Increment atomically adds one to action's counter.
	Increment(ctx context.Context, userID string, action model.UsageAction) (int, error)
}

type usageService struct {
	repo   repository.ProfileRepository
	logger zerolog.Logger
}

func NewUsageService(repo repository.ProfileRepository, logger zerolog.Logger) UsageService {
	return &usageService{
		repo:   repo,
		logger: logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) CurrentCounter(ctx context.Context, userID string, now time.Time) (model.UsageCounter, error) {
	weekStart := util.WeekStartMillis(now)
	c, err := s.repo.ResetUsageIfStale(ctx, userID, weekStart)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load usage counter")
		return model.UsageCounter{}, err
	}
	return c, nil
}

func (s *usageService) Increment(ctx context.Context, userID string, action model.UsageAction) (int, error) {
	n, err := s.repo.IncrementUsage(ctx, userID, action)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("action", string(action)).Msg("Failed to increment usage")
		return 0, err
	}
	return n, nil
}
