package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository is the per-user profile store. Every write is either a
// field-level update or a compare-and-update; no method overwrites a whole
// profile, since the webhook and the reconciler write concurrently.
type ProfileRepository interface {
	// GetProfile returns ErrNotFound when no profile exists for userID.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	// ResetUsageIfStale creates the counter if absent, zeroes it if its week
	// is older than weekStart, and returns the counter as stored afterwards.
	ResetUsageIfStale(ctx context.Context, userID string, weekStart int64) (model.UsageCounter, error)
	// IncrementUsage atomically adds one to the action's counter and returns
	// the new value.
	IncrementUsage(ctx context.Context, userID string, action model.UsageAction) (int, error)
	// SetStripeCustomerID attaches a billing customer to userID, creating the
	// profile if needed.
	SetStripeCustomerID(ctx context.Context, userID, email, customerID string) error
	// UpdateSubscription merges update into userID's subscription state.
	UpdateSubscription(ctx context.Context, userID string, update model.SubscriptionUpdate) error
	// UpdateSubscriptionByCustomer merges update into every profile linked to
	// customerID and returns how many were changed.
	UpdateSubscriptionByCustomer(ctx context.Context, customerID string, update model.SubscriptionUpdate) (int, error)
	// ListLapsedPaid returns paid-tier profiles whose period ended at or before cutoff (epoch seconds).
	ListLapsedPaid(ctx context.Context, cutoff int64) ([]model.UserProfile, error)
	// DowngradeToFree moves every candidate to the free tier with status
	// "expired" in one transaction. A candidate whose tier or period end no
	// longer matches storage, or that is again active without a pending
	// cancellation, was changed concurrently and is skipped. The
	// returned slice holds the user ids that were actually downgraded.
	DowngradeToFree(ctx context.Context, candidates []model.UserProfile) ([]string, error)
}

type profileRepo struct {
	pool *pgxpool.Pool
}

// NewProfileRepo creates a Postgres-backed ProfileRepository.
func NewProfileRepo(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepo{pool: pool}
}

const profileColumns = `user_id, email, subscription_tier, subscription_status, subscription_id, price_id,
       current_period_start, current_period_end, cancel_at_period_end, canceled_at, stripe_customer_id,
       image_uploads, outfit_generations, usage_week_start, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	var p model.UserProfile
	var tier string
	var images, outfits int
	var weekStart *int64
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&tier,
		&p.Subscription.Status,
		&p.Subscription.SubscriptionID,
		&p.Subscription.PriceID,
		&p.Subscription.CurrentPeriodStart,
		&p.Subscription.CurrentPeriodEnd,
		&p.Subscription.CancelAtPeriodEnd,
		&p.Subscription.CanceledAt,
		&p.Subscription.StripeCustomerID,
		&images,
		&outfits,
		&weekStart,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Subscription.Tier = model.Tier(tier)
	if weekStart != nil {
		p.Usage = &model.UsageCounter{ImageUploads: images, OutfitGenerations: outfits, WeekStart: *weekStart}
	}
	return &p, nil
}

func (r *profileRepo) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	p, err := scanProfile(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w: %w", userID, ErrStorageUnavailable, err)
	}
	return p, nil
}

func (r *profileRepo) ResetUsageIfStale(ctx context.Context, userID string, weekStart int64) (model.UsageCounter, error) {
	// The WHERE clause makes the reset a compare-and-update: two readers
	// racing across a week boundary both zero at most once, and a reader
	// holding an older weekStart never rewinds a newer counter.
	const q = `
        INSERT INTO user_profiles (user_id, image_uploads, outfit_generations, usage_week_start)
        VALUES ($1, 0, 0, $2)
        ON CONFLICT (user_id) DO UPDATE
        SET image_uploads = 0,
            outfit_generations = 0,
            usage_week_start = EXCLUDED.usage_week_start,
            updated_at = NOW()
        WHERE user_profiles.usage_week_start IS NULL
           OR user_profiles.usage_week_start < EXCLUDED.usage_week_start
    `
	if _, err := r.pool.Exec(ctx, q, userID, weekStart); err != nil {
		return model.UsageCounter{}, fmt.Errorf("reset usage for user %s: %w: %w", userID, ErrStorageUnavailable, err)
	}

	const sel = `SELECT image_uploads, outfit_generations, usage_week_start FROM user_profiles WHERE user_id = $1`
	var c model.UsageCounter
	if err := r.pool.QueryRow(ctx, sel, userID).Scan(&c.ImageUploads, &c.OutfitGenerations, &c.WeekStart); err != nil {
		return model.UsageCounter{}, fmt.Errorf("fetch usage for user %s: %w: %w", userID, ErrStorageUnavailable, err)
	}
	return c, nil
}

func usageColumn(action model.UsageAction) (string, error) {
	switch action {
	case model.ActionImageUpload:
		return "image_uploads", nil
	case model.ActionOutfitGeneration:
		return "outfit_generations", nil
	}
	return "", fmt.Errorf("unknown usage action %q", action)
}

func (r *profileRepo) IncrementUsage(ctx context.Context, userID string, action model.UsageAction) (int, error) {
	col, err := usageColumn(action)
	if err != nil {
		return 0, err
	}
	q := `UPDATE user_profiles SET ` + col + ` = ` + col + ` + 1, updated_at = NOW()
          WHERE user_id = $1 RETURNING ` + col
	var n int
	err = r.pool.QueryRow(ctx, q, userID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment %s for user %s: %w", action, userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s for user %s: %w: %w", action, userID, ErrStorageUnavailable, err)
	}
	return n, nil
}

func (r *profileRepo) SetStripeCustomerID(ctx context.Context, userID, email, customerID string) error {
	const q = `
        INSERT INTO user_profiles (user_id, email, stripe_customer_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE
        SET stripe_customer_id = EXCLUDED.stripe_customer_id,
            email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE user_profiles.email END,
            updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, email, customerID); err != nil {
		return fmt.Errorf("set stripe customer for user %s: %w: %w", userID, ErrStorageUnavailable, err)
	}
	return nil
}

// subscriptionSet renders the SET list for update. Placeholders start at
// $start; the returned args line up with them.
func subscriptionSet(update model.SubscriptionUpdate, start int) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, start+len(args)-1))
	}
	if update.Tier != nil {
		add("subscription_tier", string(*update.Tier))
	}
	if update.Status != nil {
		add("subscription_status", *update.Status)
	}
	if update.SubscriptionID != nil {
		add("subscription_id", *update.SubscriptionID)
	}
	if update.PriceID != nil {
		add("price_id", *update.PriceID)
	}
	if update.CurrentPeriodStart != nil {
		add("current_period_start", *update.CurrentPeriodStart)
	}
	if update.CurrentPeriodEnd != nil {
		add("current_period_end", *update.CurrentPeriodEnd)
	}
	if update.CancelAtPeriodEnd != nil {
		add("cancel_at_period_end", *update.CancelAtPeriodEnd)
	}
	if update.CanceledAt != nil {
		add("canceled_at", *update.CanceledAt)
	}
	sets = append(sets, "updated_at = NOW()")
	return strings.Join(sets, ", "), args
}

func (r *profileRepo) UpdateSubscription(ctx context.Context, userID string, update model.SubscriptionUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	set, args := subscriptionSet(update, 2)
	q := `UPDATE user_profiles SET ` + set + ` WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, q, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("update subscription for user %s: %w: %w", userID, ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subscription for user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (r *profileRepo) UpdateSubscriptionByCustomer(ctx context.Context, customerID string, update model.SubscriptionUpdate) (int, error) {
	if update.IsEmpty() || customerID == "" {
		return 0, nil
	}
	set, args := subscriptionSet(update, 2)
	q := `UPDATE user_profiles SET ` + set + ` WHERE stripe_customer_id = $1`
	tag, err := r.pool.Exec(ctx, q, append([]any{customerID}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("update subscription for customer %s: %w: %w", customerID, ErrStorageUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *profileRepo) ListLapsedPaid(ctx context.Context, cutoff int64) ([]model.UserProfile, error) {
	q := `SELECT ` + profileColumns + `
          FROM user_profiles
          WHERE subscription_tier IN ('basic', 'premium')
            AND current_period_end <= $1
          ORDER BY current_period_end, user_id`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list lapsed paid profiles: %w: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []model.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lapsed profile: %w: %w", ErrStorageUnavailable, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lapsed profiles: %w: %w", ErrStorageUnavailable, err)
	}
	return out, nil
}

// downgradeQuery re-checks the lapse condition so a row that was renewed or
// resumed after it was listed is left alone.
const downgradeQuery = `
        UPDATE user_profiles
        SET subscription_tier = 'free',
            subscription_status = 'expired',
            updated_at = NOW()
        WHERE user_id = $1
          AND subscription_tier = $2
          AND current_period_end = $3
          AND (cancel_at_period_end OR subscription_status <> 'active')
    `

func (r *profileRepo) DowngradeToFree(ctx context.Context, candidates []model.UserProfile) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("starting downgrade transaction: %w: %w", ErrStorageUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(downgradeQuery, c.UserID, string(c.Subscription.Tier), c.Subscription.CurrentPeriodEnd)
	}
	results := tx.SendBatch(ctx, batch)
	var downgraded []string
	for _, c := range candidates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("downgrade user %s: %w: %w", c.UserID, ErrStorageUnavailable, err)
		}
		if tag.RowsAffected() > 0 {
			downgraded = append(downgraded, c.UserID)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("closing downgrade batch: %w: %w", ErrStorageUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing downgrade transaction: %w: %w", ErrStorageUnavailable, err)
	}
	return downgraded, nil
}
