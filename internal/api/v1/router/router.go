package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/handler"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/config"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/middleware"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires services and handlers over stores and returns the root HTTP
// handler. The returned func releases collaborator clients.
func New(ctx context.Context, cfg *config.Config, stores *Stores, reconciler service.ReconcilerService, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Str("profile_store", cfg.ProfileStore).Msg("Router initializing")

	// 1. AWS clients
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	})
	rekognitionClient := rekognition.NewFromConfig(awsCfg)

	// 2. Recommender
	generator, closeGenerator, err := service.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := closeGenerator(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Gemini client")
		}
	}

	// 3. Billing
	secret, err := webhookSecret(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	priceTiers, err := cfg.PriceTiers()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	billing := service.NewStripeProvider(cfg.StripeSecretKey)

	// 4. Services
	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := service.NewPolicy(service.DefaultTierLimits())
	usageSvc := service.NewUsageService(stores.Profiles, logger)
	quotaSvc := service.NewQuotaService(stores.Profiles, usageSvc, policy, time.Now, logger)
	labeler := service.NewRekognitionLabeler(rekognitionClient, cfg.LabelMaxLabels, float32(cfg.LabelMinConfidence))
	imageSvc := service.NewImageService(service.NewS3ObjectStore(s3Client, cfg.S3Bucket), labeler, stores.Wardrobe, quotaSvc, logger)
	outfitSvc := service.NewOutfitService(service.NewRecommender(generator), quotaSvc)
	stripeSvc := service.NewStripeService(billing, stores.Profiles, priceTiers, cfg.StripePriceLookupKeys, cfg.StripePublishableKey, logger)
	billingEvents := service.NewBillingEventService(stores.Profiles, billing, secret, priceTiers, logger)

	// 5. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	schedulerMiddleware := middleware.SchedulerAuthMiddleware(cfg.IsDevelopment(), cfg.SchedulerAudience, cfg.SchedulerServiceAccountEmail, nil, logger)

	// 6. Routes
	apiV1Mux := http.NewServeMux()
	handler.NewImageHandler(imageSvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewOutfitHandler(outfitSvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewSubscriptionHandler(stripeSvc, quotaSvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewWebhookHandler(billingEvents, logger).RegisterRoutes(apiV1Mux)
	handler.NewInternalHandler(reconciler, logger).RegisterRoutes(apiV1Mux, schedulerMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	origins := []string{"*"}
	if cfg.FrontendURL != "" {
		origins = []string{cfg.FrontendURL}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Stripe-Signature", middleware.RequestIDHeader},
		AllowCredentials: cfg.FrontendURL != "",
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
