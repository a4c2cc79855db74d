package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/config"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/pubsub"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Stores holds the storage backends selected by PROFILE_STORE.
type Stores struct {
	Profiles repository.ProfileRepository
	Reviews  repository.ReviewRepository
	Wardrobe repository.WardrobeRepository
	pool     *pgxpool.Pool
}

func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// OpenStores connects to Postgres and ensures the schema, or builds the
// in-memory stores for local development.
func OpenStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	if cfg.ProfileStore == "memory" {
		logger.Warn().Msg("Using in-memory profile store; data is lost on restart")
		return &Stores{
			Profiles: repository.NewMemoryProfileRepo(),
			Reviews:  repository.NewMemoryReviewRepo(),
			Wardrobe: repository.NewMemoryWardrobeRepo(),
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}
	// Transaction poolers like pgbouncer do not support server-side prepared statements.
	if !cfg.IsDevelopment() {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	logger.Info().Msg("Database connection successful")

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Stores{
		Profiles: repository.NewProfileRepo(pool),
		Reviews:  repository.NewReviewRepo(pool),
		Wardrobe: repository.NewWardrobeRepo(pool),
		pool:     pool,
	}, nil
}

// databaseURL disables SSL for local databases unless the DSN says otherwise.
func databaseURL(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if !cfg.IsDevelopment() || strings.Contains(dsn, "sslmode") {
		return dsn
	}
	separator := " "
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		separator = "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
	}
	return dsn + separator + "sslmode=disable"
}

// NewReconciler builds the reconciler with its optional report publisher.
// The returned func releases the publisher.
func NewReconciler(ctx context.Context, cfg *config.Config, stores *Stores, logger zerolog.Logger) (service.ReconcilerService, func(), error) {
	var publisher pubsub.Publisher
	cleanup := func() {}
	if cfg.PubSubReviewTopic != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		publisher = p
		cleanup = func() {
			if err := p.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close Pub/Sub publisher")
			}
		}
	} else {
		logger.Info().Msg("PUBSUB_REVIEW_TOPIC not set, reconciliation reports will not be published")
	}
	reconciler := service.NewReconcilerService(stores.Profiles, stores.Reviews, publisher, cfg.PubSubReviewTopic, time.Now, logger)
	return reconciler, cleanup, nil
}

// webhookSecret returns the Stripe signing secret, preferring Secret Manager
// when STRIPE_WEBHOOK_SECRET_NAME is set.
func webhookSecret(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (string, error) {
	if cfg.StripeWebhookSecretName == "" {
		if cfg.StripeWebhookSecret == "" {
			logger.Warn().Msg("No Stripe webhook secret configured; every webhook will be rejected")
		}
		return cfg.StripeWebhookSecret, nil
	}
	sm, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
	if err != nil {
		return "", err
	}
	defer sm.Close()
	secret, err := sm.GetSecret(ctx, cfg.StripeWebhookSecretName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve Stripe webhook secret: %w", err)
	}
	logger.Info().Str("secret", cfg.StripeWebhookSecretName).Msg("Stripe webhook secret loaded from Secret Manager")
	return secret, nil
}
