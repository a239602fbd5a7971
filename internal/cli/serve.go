package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/basel-ax/fitroom/internal/api"
	"github.com/basel-ax/fitroom/internal/config"
	"github.com/basel-ax/fitroom/internal/infrastructure/httpclient"
	"github.com/basel-ax/fitroom/internal/infrastructure/replicate"
	"github.com/basel-ax/fitroom/internal/service"
	"github.com/basel-ax/fitroom/internal/storage"
	"github.com/basel-ax/fitroom/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, opts)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, opts *rootOptions) error {
	log := opts.logger(cfg)

	shutdownTracing, err := tracing.Init(cfg.TracingExporter, "fitroom")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing.shutdown_failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	httpCfg := httpclient.ForRelay(cfg.PollInterval, cfg.PollTimeout, cfg.MaxConcurrentRelays)
	predictions := replicate.NewClient(cfg.ReplicateBaseURL, cfg.ReplicateAPIToken, httpclient.New(httpCfg))

	relay := service.NewRelay(predictions, service.RelayConfig{
		ModelVersion:       cfg.ModelVersion,
		GarmentDescription: cfg.GarmentDescription,
		PollInterval:       cfg.PollInterval,
		PollTimeout:        cfg.PollTimeout,
		MaxConcurrent:      cfg.MaxConcurrentRelays,
	}, service.WithHistory(st.history), service.WithLogger(log))

	apiOpts := api.Options{
		Relay:     relay,
		Garments:  st.garments,
		Favorites: st.favorites,
		History:   st.history,
		JWTSecret: cfg.AuthJWTSecret,
		Logger:    log,

		Recommendations: st.recommendations,
	}
	if st.persistent() {
		apiOpts.DB = st.db
	}
	if cfg.Storage.Enabled() {
		images, err := storage.NewMinioStore(cfg.Storage)
		if err != nil {
			return err
		}
		apiOpts.Images = images
	} else {
		log.Warn("storage.disabled", "reason", "STORAGE_ENDPOINT not set, uploads are rejected")
	}

	if cfg.HistoryPruneSchedule != "" {
		pruner := service.NewHistoryPruner(st.history, cfg.HistoryRetention, log)
		if _, err := pruner.Schedule(ctx, cfg.HistoryPruneSchedule); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(apiOpts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.PollTimeout + shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listening",
			"addr", cfg.HTTPAddr,
			"auth", cfg.AuthJWTSecret != "",
			"poll_interval", cfg.PollInterval,
			"poll_timeout", cfg.PollTimeout,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("http.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("http.stopped")
	return nil
}
