package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dgallion1/qcsr/internal/api"
	"github.com/dgallion1/qcsr/internal/config"
	"github.com/dgallion1/qcsr/internal/pipeline"
	"github.com/dgallion1/qcsr/internal/resultstore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "qcsr",
		Short:         "Quality-control extraction for DICOM structured reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(paramsCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		logger := newLogger(os.Stderr)
		logger.Error().Err(err).Msg("qcsr failed")
		os.Exit(1)
	}
}

// newLogger writes JSON lines, or console output when ENV=development.
func newLogger(out io.Writer) zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Str("service", "qcsr").Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the qcsr API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := pipeline.InitTracing(ctx, "qcsr", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	store, err := resultstore.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.ResultStore).Msg("failed to open result store")
	}
	logger.Info().Str("store", cfg.ResultStore).Msg("result store ready")

	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	orch := pipeline.NewOrchestrator(cfg, store, metrics, logger)
	orch.Start(ctx)

	srv := api.NewServer(orch, prometheus.DefaultGatherer, logger, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("port", cfg.Port).Int("workers", cfg.WorkerCount).Msg("starting qcsr")
	return serve(ctx, httpServer, logger, func(shutdownCtx context.Context) {
		orch.Stop()
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("close result store")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("flush traces")
		}
	})
}

// serve runs httpServer until ctx is done, then shuts it down and runs
// cleanup. It returns only after cleanup has finished.
func serve(ctx context.Context, httpServer *http.Server, logger zerolog.Logger, cleanup func(context.Context)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info().Msg("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		cleanup(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	logger.Info().Msg("shutdown complete")
	return nil
}
