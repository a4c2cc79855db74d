package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/router"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/config"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/logger"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// @title Indumenta API
// @version 1.0
// @description Wardrobe backend: image analysis, outfit generation and subscriptions
// @host localhost:3001
// @BasePath /v1
// @Schemes http https

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Storage and background services
	stores, err := router.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to open stores: %v", err)
	}
	defer stores.Close()

	reconciler, closeReconciler, err := router.NewReconciler(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build reconciler: %v", err)
	}
	defer closeReconciler()

	// 3. Build router
	r, cleanup, err := router.New(ctx, cfg, stores, reconciler, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. Run the server and the daily reconciliation loop until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.ReconcileEnabled {
		g.Go(func() error {
			reconciler.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received, exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return
	}
	logger.Info().Msg("Server shut down gracefully")
}
