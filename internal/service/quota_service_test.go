package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday.
var testNow = time.Date(2025, time.June, 11, 10, 0, 0, 0, time.UTC)

type quotaFixture struct {
	repo  *flakyProfileRepo
	clock *clock
	quota QuotaService
}

func newQuotaFixture() *quotaFixture {
	repo := newFlakyProfileRepo()
	c := newClock(testNow)
	usage := NewUsageService(repo, nopLogger)
	return &quotaFixture{
		repo:  repo,
		clock: c,
		quota: NewQuotaService(repo, usage, NewPolicy(DefaultTierLimits()), c.Now, nopLogger),
	}
}

func (f *quotaFixture) seed(userID string, tier model.Tier, status string, images, outfits int) {
	f.repo.Put(model.UserProfile{
		UserID:       userID,
		Subscription: model.SubscriptionState{Tier: tier, Status: status},
		Usage: &model.UsageCounter{
			ImageUploads:      images,
			OutfitGenerations: outfits,
			WeekStart:         util.WeekStartMillis(testNow),
		},
	})
}

func succeed(context.Context) error { return nil }

func TestDecide(t *testing.T) {
	free := NewPolicy(DefaultTierLimits()).LimitsFor(model.TierFree)
	basic := NewPolicy(DefaultTierLimits()).LimitsFor(model.TierBasic)

	t.Run("free at limit", func(t *testing.T) {
		d := Decide(model.TierFree, "", free, model.UsageCounter{ImageUploads: 8}, model.ActionImageUpload)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonLimitReached, d.Reason)
		assert.Equal(t, 0, d.Remaining)
	})

	t.Run("free one left", func(t *testing.T) {
		d := Decide(model.TierFree, "", free, model.UsageCounter{ImageUploads: 7}, model.ActionImageUpload)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Remaining)
	})

	t.Run("over limit clamps remaining", func(t *testing.T) {
		d := Decide(model.TierFree, "", free, model.UsageCounter{OutfitGenerations: 9}, model.ActionOutfitGeneration)
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
	})

	t.Run("paid but inactive", func(t *testing.T) {
		for _, status := range []string{model.StatusPastDue, model.StatusCanceled, "incomplete", ""} {
			for _, used := range []int{0, 5, 25} {
				d := Decide(model.TierBasic, status, basic, model.UsageCounter{ImageUploads: used}, model.ActionImageUpload)
				assert.False(t, d.Allowed, "status=%q used=%d", status, used)
				assert.Equal(t, ReasonInactiveSubscription, d.Reason)
			}
		}
	})

	t.Run("paid active", func(t *testing.T) {
		d := Decide(model.TierBasic, model.StatusActive, basic, model.UsageCounter{ImageUploads: 20}, model.ActionImageUpload)
		assert.True(t, d.Allowed)
		assert.Equal(t, 5, d.Remaining)
	})
}

func TestGuardConsumesOnlyAfterSuccess(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.seed("u1", model.TierFree, "", 0, 0)

	actionErr := errors.New("recommender down")
	err := f.quota.CheckAndConsumeOutfitGenerationQuota(ctx, "u1", func(context.Context) error { return actionErr })
	require.ErrorIs(t, err, actionErr)

	p, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Usage.OutfitGenerations)

	require.NoError(t, f.quota.CheckAndConsumeOutfitGenerationQuota(ctx, "u1", succeed))
	p, err = f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Usage.OutfitGenerations)
}

func TestGuardDeniesWithoutRunningAction(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.seed("lapsed", model.TierPremium, model.StatusPastDue, 0, 0)

	ran := false
	err := f.quota.CheckAndConsumeImageUploadQuota(ctx, "lapsed", func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ReasonInactiveSubscription, qe.Reason)
	assert.False(t, ran)
}

func TestGuardStorageFailureIsNotQuotaAvailable(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.seed("u1", model.TierFree, "", 0, 0)
	f.repo.failReads = true

	ran := false
	err := f.quota.CheckAndConsumeImageUploadQuota(ctx, "u1", func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, repository.ErrStorageUnavailable)
	assert.False(t, ran)
	assert.Zero(t, f.repo.writes)
}

func TestGuardWithoutProfileIsFreeTier(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.quota.CheckAndConsumeOutfitGenerationQuota(ctx, "new-user", succeed))
	}
	err := f.quota.CheckAndConsumeOutfitGenerationQuota(ctx, "new-user", succeed)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestGuardRequiresUser(t *testing.T) {
	f := newQuotaFixture()
	err := f.quota.CheckAndConsumeImageUploadQuota(context.Background(), "", succeed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestImageUploadWeekScenario(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()

	for i := 0; i < 8; i++ {
		require.NoError(t, f.quota.CheckAndConsumeImageUploadQuota(ctx, "ana", succeed), "upload %d", i+1)
	}
	status, err := f.quota.GetUsageStatus(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, ActionUsage{Used: 8, Remaining: 0, Total: 8}, status.ImageUploads)

	err = f.quota.CheckAndConsumeImageUploadQuota(ctx, "ana", succeed)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ReasonLimitReached, qe.Reason)
	assert.Equal(t, 0, qe.Remaining)

	f.clock.Advance(7 * 24 * time.Hour)
	require.NoError(t, f.quota.CheckAndConsumeImageUploadQuota(ctx, "ana", succeed))

	p, err := f.repo.GetProfile(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Usage.ImageUploads)
	assert.Equal(t, util.WeekStartMillis(f.clock.Now()), p.Usage.WeekStart)
}

func TestLazyResetDiscardsPreviousWeek(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryProfileRepo()
	lastWeek := util.WeekStart(testNow).AddDate(0, 0, -7)
	repo.Put(model.UserProfile{
		UserID: "u1",
		Usage:  &model.UsageCounter{ImageUploads: 6, OutfitGenerations: 2, WeekStart: lastWeek.UnixMilli()},
	})
	usage := NewUsageService(repo, nopLogger)

	c, err := usage.CurrentCounter(ctx, "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, model.UsageCounter{WeekStart: util.WeekStartMillis(testNow)}, c)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryProfileRepo()
	usage := NewUsageService(repo, nopLogger)
	_, err := usage.CurrentCounter(ctx, "u1", testNow)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := usage.Increment(ctx, "u1", model.ActionImageUpload)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := usage.CurrentCounter(ctx, "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, n, c.ImageUploads)
}

func TestGetUsageStatus(t *testing.T) {
	ctx := context.Background()
	f := newQuotaFixture()
	f.seed("u1", model.TierBasic, model.StatusActive, 4, 9)

	status, err := f.quota.GetUsageStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TierBasic, status.Tier)
	assert.Equal(t, ActionUsage{Used: 4, Remaining: 21, Total: 25}, status.ImageUploads)
	assert.Equal(t, ActionUsage{Used: 9, Remaining: 1, Total: 10}, status.OutfitGenerations)
	assert.Equal(t, time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), status.ResetsOn)
}
