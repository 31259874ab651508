package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sustainai/internal/cfg"
	"sustainai/internal/metrics"
	"sustainai/internal/ml"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model once and serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cfg.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if modelPath != "" {
				settings.ModelPath = modelPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, settings)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model artifact path (overrides MODEL_PATH)")
	return cmd
}

func serve(ctx context.Context, settings cfg.Settings) error {
	m := metrics.New()
	wrapper := metrics.NewWrapper(m)

	engine := ml.NewEngine(append(settings.EngineOptions(), ml.WithMetrics(wrapper))...)
	if err := engine.Load(settings.ModelPath); err != nil {
		return fmt.Errorf("model load: %w", err)
	}

	modelServer := ml.NewModelServer(engine, wrapper, settings.ServerConfig())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: settings.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(modelServer.Start)

	g.Go(func() error {
		log.Info().Str("addr", metricsServer.Addr).Msg("Metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			modelServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
