package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/config"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/logging"
	transporthttp "github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/transport/http"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "api",
		Short:         "Order settlement API with background workers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing app.env")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				d, err := connect(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				d.close()
				return nil
			},
		},
		jobCmd(&configPath, "sweep", "Cancel expired pending orders once", func(ctx context.Context, d *deps) (int, error) {
			return d.sweeper.Sweep(ctx)
		}),
		jobCmd(&configPath, "relay", "Publish one outbox batch", func(ctx context.Context, d *deps) (int, error) {
			if d.relay == nil {
				return 0, errors.New("KAFKA_BROKERS is not set")
			}
			res, err := d.relay.RelayOnce(ctx)
			return res.Published, err
		}),
		jobCmd(&configPath, "reconcile-refunds", "Retry pending and stale refunds once", func(ctx context.Context, d *deps) (int, error) {
			res, err := d.reconciler.Reconcile(ctx)
			return res.Succeeded, err
		}),
	)
	return root
}

// jobCmd runs one pass of a background job for external schedulers.
func jobCmd(configPath *string, use, short string, run func(context.Context, *deps) (int, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			d, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			n, err := run(ctx, d)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			log.Info().Str("job", use).Int("processed", n).Msg("job finished")
			return nil
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	return cfg, nil
}

func serve(parent context.Context, cfg config.Config) error {
	d, err := connect(parent, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	handler := transporthttp.NewRouter(d.services(), transporthttp.RouterOptions{
		CORSOrigins: cfg.Origins(),
		Metrics:     d.metrics,
		Health: map[string]transporthttp.Pinger{
			"postgres": d.pool,
			"redis":    d.locker,
		},
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	startWorker := func(name string, run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			log.Info().Str("worker", name).Msg("worker started")
			run(ctx)
			log.Info().Str("worker", name).Msg("worker stopped")
		}()
	}
	startWorker("expiry_sweep", func(ctx context.Context) { d.sweeper.Run(ctx, cfg.SweepInterval, d.metrics) })
	startWorker("refund_reconcile", func(ctx context.Context) { d.reconciler.Run(ctx, cfg.RefundRetryInterval, d.metrics) })
	if d.relay != nil {
		startWorker("outbox_relay", func(ctx context.Context) { d.relay.Run(ctx, cfg.OutboxPollInterval, d.metrics) })
	}
	if d.consumer != nil {
		startWorker("refund_consumer", func(ctx context.Context) {
			if err := d.consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("consumer stopped with error")
			}
		})
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("app", cfg.AppName).Msg("api listening")
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
		stop()
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server shutdown error")
	}
	workers.Wait()
	log.Info().Msg("server stopped")
	return nil
}
