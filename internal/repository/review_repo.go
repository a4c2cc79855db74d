package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewRepository stores reconciliation items that need a human to look at
// them: paid profiles whose period ended while the provider still reported
// the subscription as active and renewing.
type ReviewRepository interface {
	// Create records review unless a pending one already exists for the same
	// user and period end. It reports whether a new row was written.
	Create(ctx context.Context, review *model.SubscriptionReview) (bool, error)
	ListPending(ctx context.Context, limit int) ([]model.SubscriptionReview, error)
	Resolve(ctx context.Context, id string) error
}

type reviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepo{pool: pool}
}

func (r *reviewRepo) Create(ctx context.Context, review *model.SubscriptionReview) (bool, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.ReviewStatus == "" {
		review.ReviewStatus = model.ReviewPending
	}
	const q = `
        INSERT INTO subscription_reviews (id, user_id, subscription_tier, subscription_status, period_end, review_status)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, period_end) WHERE review_status = 'pending' DO NOTHING
    `
	tag, err := r.pool.Exec(ctx, q,
		review.ID,
		review.UserID,
		string(review.Tier),
		review.Status,
		review.PeriodEnd,
		review.ReviewStatus,
	)
	if err != nil {
		return false, fmt.Errorf("create review for user %s: %w: %w", review.UserID, ErrStorageUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *reviewRepo) ListPending(ctx context.Context, limit int) ([]model.SubscriptionReview, error) {
	const q = `
        SELECT id, user_id, subscription_tier, subscription_status, period_end, review_status, created_at, updated_at
        FROM subscription_reviews
        WHERE review_status = 'pending'
        ORDER BY created_at
        LIMIT $1
    `
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []model.SubscriptionReview
	for rows.Next() {
		var rv model.SubscriptionReview
		var tier string
		if err := rows.Scan(&rv.ID, &rv.UserID, &tier, &rv.Status, &rv.PeriodEnd, &rv.ReviewStatus, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w: %w", ErrStorageUnavailable, err)
		}
		rv.Tier = model.Tier(tier)
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w: %w", ErrStorageUnavailable, err)
	}
	return out, nil
}

func (r *reviewRepo) Resolve(ctx context.Context, id string) error {
	const q = `UPDATE subscription_reviews SET review_status = 'resolved', updated_at = NOW() WHERE id = $1 AND review_status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("resolve review %s: %w: %w", id, ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return nil
}

var _ ReviewRepository = (*MemoryReviewRepo)(nil)

// MemoryReviewRepo is the in-process ReviewRepository.
type MemoryReviewRepo struct {
	mu      sync.Mutex
	reviews map[string]*model.SubscriptionReview
}

func NewMemoryReviewRepo() *MemoryReviewRepo {
	return &MemoryReviewRepo{reviews: make(map[string]*model.SubscriptionReview)}
}

func (r *MemoryReviewRepo) Create(_ context.Context, review *model.SubscriptionReview) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ReviewStatus == model.ReviewPending && existing.UserID == review.UserID && existing.PeriodEnd == review.PeriodEnd {
			return false, nil
		}
	}
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.ReviewStatus == "" {
		review.ReviewStatus = model.ReviewPending
	}
	now := time.Now()
	review.CreatedAt, review.UpdatedAt = now, now
	c := *review
	r.reviews[c.ID] = &c
	return true, nil
}

func (r *MemoryReviewRepo) ListPending(_ context.Context, limit int) ([]model.SubscriptionReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SubscriptionReview
	for _, rv := range r.reviews {
		if rv.ReviewStatus == model.ReviewPending {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryReviewRepo) Resolve(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok || rv.ReviewStatus != model.ReviewPending {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	rv.ReviewStatus = model.ReviewResolved
	rv.UpdatedAt = time.Now()
	return nil
}
