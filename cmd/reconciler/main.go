package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/router"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/config"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	loop := flag.Bool("loop", false, "Keep running and sweep daily at midnight UTC instead of once")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *loop, logger); err != nil {
		logger.Error().Err(err).Msg("Reconciliation failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, loop bool, logger zerolog.Logger) error {
	stores, err := router.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	reconciler, closeReconciler, err := router.NewReconciler(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}
	defer closeReconciler()

	if loop {
		reconciler.Run(ctx)
		return nil
	}

	result, err := reconciler.RunReconciliation(ctx)
	if err != nil {
		return err
	}
	logger.Info().
		Int("downgraded", len(result.Downgraded)).
		Int("needs_manual_review", len(result.NeedsManualReview)).
		Int("skipped", len(result.Skipped)).
		Msg("Reconciliation finished")
	return nil
}
