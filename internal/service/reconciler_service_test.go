package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFixture struct {
	repo      *flakyProfileRepo
	reviews   *repository.MemoryReviewRepo
	publisher *fakePublisher
	svc       ReconcilerService
}

func newReconcilerFixture() *reconcilerFixture {
	repo := newFlakyProfileRepo()
	reviews := repository.NewMemoryReviewRepo()
	pub := &fakePublisher{}
	return &reconcilerFixture{
		repo:      repo,
		reviews:   reviews,
		publisher: pub,
		svc:       NewReconcilerService(repo, reviews, pub, "subscription-reviews", newClock(testNow).Now, nopLogger),
	}
}

func (f *reconcilerFixture) put(userID string, tier model.Tier, status string, periodEnd time.Time, cancel bool) {
	f.repo.Put(model.UserProfile{
		UserID: userID,
		Subscription: model.SubscriptionState{
			Tier:              tier,
			Status:            status,
			CurrentPeriodEnd:  periodEnd.Unix(),
			CancelAtPeriodEnd: cancel,
		},
	})
}

func (f *reconcilerFixture) sub(t *testing.T, userID string) model.SubscriptionState {
	t.Helper()
	p, err := f.repo.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	return p.Subscription
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	past := testNow.Add(-time.Hour)
	future := testNow.Add(24 * time.Hour)

	f.put("cancelling", model.TierBasic, model.StatusActive, past, true)
	f.put("past-due", model.TierPremium, model.StatusPastDue, past, false)
	f.put("renewing", model.TierBasic, model.StatusActive, past, false)
	f.put("current", model.TierPremium, model.StatusActive, future, true)
	f.put("free", model.TierFree, model.StatusExpired, past, false)

	res, err := f.svc.Reconcile(ctx, testNow)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"cancelling", "past-due"}, res.Downgraded)
	require.Len(t, res.NeedsManualReview, 1)
	assert.Equal(t, "renewing", res.NeedsManualReview[0].UserID)
	assert.Empty(t, res.Skipped)

	for _, id := range []string{"cancelling", "past-due"} {
		st := f.sub(t, id)
		assert.Equal(t, model.TierFree, st.Tier, id)
		assert.Equal(t, model.StatusExpired, st.Status, id)
	}
	assert.Equal(t, model.TierBasic, f.sub(t, "renewing").Tier)
	assert.Equal(t, model.StatusActive, f.sub(t, "renewing").Status)
	assert.Equal(t, model.TierPremium, f.sub(t, "current").Tier)

	pending, err := f.reviews.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "renewing", pending[0].UserID)

	msgs := f.publisher.messages["subscription-reviews"]
	require.Len(t, msgs, 1)
	var report ReconcileResult
	require.NoError(t, json.Unmarshal(msgs[0], &report))
	assert.ElementsMatch(t, res.Downgraded, report.Downgraded)
}

func TestReconcilePeriodEndBoundary(t *testing.T) {
	f := newReconcilerFixture()
	f.put("edge", model.TierBasic, model.StatusCanceled, testNow, false)

	res, err := f.svc.Reconcile(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, res.Downgraded)
}

func TestReconcileBatchFailureDowngradesNobody(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	past := testNow.Add(-time.Hour)
	f.put("a", model.TierBasic, model.StatusCanceled, past, false)
	f.put("b", model.TierPremium, model.StatusActive, past, true)
	f.repo.failDowngrade = true

	res, err := f.svc.Reconcile(ctx, testNow)
	require.ErrorIs(t, err, repository.ErrStorageUnavailable)
	assert.Nil(t, res)

	assert.Equal(t, model.TierBasic, f.sub(t, "a").Tier)
	assert.Equal(t, model.TierPremium, f.sub(t, "b").Tier)
	assert.Empty(t, f.publisher.messages)
}

func TestReconcileRepeatedRunDoesNotDuplicateReviews(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.put("renewing", model.TierBasic, model.StatusActive, testNow.Add(-time.Hour), false)

	_, err := f.svc.Reconcile(ctx, testNow)
	require.NoError(t, err)
	_, err = f.svc.Reconcile(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)

	pending, err := f.svc.ListPendingReviews(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.svc.ResolveReview(ctx, pending[0].ID))
	pending, err = f.svc.ListPendingReviews(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcileNothingToDo(t *testing.T) {
	f := newReconcilerFixture()
	res, err := f.svc.RunReconciliation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Downgraded)
	assert.Empty(t, res.NeedsManualReview)
	assert.Empty(t, f.publisher.messages)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	f := newReconcilerFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
