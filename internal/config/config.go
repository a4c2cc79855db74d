package config

import (
	"fmt"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"3001"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	FrontendURL string `envconfig:"FRONTEND_URL"`

	// Profile store: "postgres" or "memory" (local development only)
	ProfileStore       string `envconfig:"PROFILE_STORE" default:"postgres"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Stripe settings
	StripeSecretKey         string            `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripePublishableKey    string            `envconfig:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret     string            `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookSecretName string            `envconfig:"STRIPE_WEBHOOK_SECRET_NAME"`
	StripePriceTiers        map[string]string `envconfig:"STRIPE_PRICE_TIERS"`
	StripePriceLookupKeys   []string          `envconfig:"STRIPE_PRICE_LOOKUP_KEYS" default:"monthly_basic,monthly_premium"`

	// Image storage and labeling
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	S3Bucket           string `envconfig:"S3_BUCKET" required:"true"`
	S3URL              string `envconfig:"S3_URL"`
	LabelMaxLabels     int32  `envconfig:"LABEL_MAX_LABELS" default:"20"`
	LabelMinConfidence int    `envconfig:"LABEL_MIN_CONFIDENCE" default:"70"`

	// Outfit recommender
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// GCP settings
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubReviewTopic  string `envconfig:"PUBSUB_REVIEW_TOPIC"`

	// Reconciliation settings
	ReconcileEnabled             bool   `envconfig:"RECONCILE_ENABLED" default:"true"`
	SchedulerAudience            string `envconfig:"SCHEDULER_AUDIENCE"`
	SchedulerServiceAccountEmail string `envconfig:"SCHEDULER_SERVICE_ACCOUNT_EMAIL"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.ProfileStore != "postgres" && cfg.ProfileStore != "memory" {
		return nil, fmt.Errorf("invalid PROFILE_STORE %q", cfg.ProfileStore)
	}
	if cfg.ProfileStore == "postgres" && cfg.DBConnectionString == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is required when PROFILE_STORE=postgres")
	}
	if _, err := cfg.PriceTiers(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PriceTiers builds the price id to tier table from STRIPE_PRICE_TIERS
// ("price_abc:basic,price_def:premium").
func (c *Config) PriceTiers() (map[string]model.Tier, error) {
	out := make(map[string]model.Tier, len(c.StripePriceTiers))
	for priceID, name := range c.StripePriceTiers {
		tier, ok := model.ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("STRIPE_PRICE_TIERS: unknown tier %q for price %s", name, priceID)
		}
		out[priceID] = tier
	}
	return out, nil
}

// IsDevelopment reports whether the service runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
