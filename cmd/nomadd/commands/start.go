package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/BlackLotus/nomad/cmd/nomadd/wire"
	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/internal/metrics"
	"github.com/BlackLotus/nomad/internal/telemetry"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/httpapi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the NOMAD daemon (worker pool + HTTP API)",
	Long: `start loads the configuration, wires the core stack, and runs the
scheduler's worker pool alongside the HTTP API concurrently until it
receives SIGINT or SIGTERM, at which point it shuts both down gracefully.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	if configPath == "" && !config.DefaultConfigExists() {
		return fmt.Errorf(
			"no configuration file found at default location: %s\nrun `nomadd init` first, or pass --config",
			config.GetDefaultConfigPath())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nomadd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", logger.Path(cfg.Telemetry.Endpoint))
	} else {
		logger.Info("telemetry disabled")
	}

	stack, err := wire.Build(cfg)
	if err != nil {
		return fmt.Errorf("wiring core stack: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("stack shutdown error", logger.Err(err))
		}
	}()

	logger.Info("nomadd starting",
		logger.Path(cfg.FileStore.StagingRoot),
		logger.Operation("start"))

	server := httpapi.NewServer(cfg.HTTP, cfg.ShutdownTimeout, stack.Controller)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stack.Scheduler.RunPool(gctx, cfg.Scheduler)
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}
		g.Go(func() error {
			errCh := make(chan error, 1)
			go func() {
				logger.Info("metrics listening", logger.Path(metricsSrv.Addr))
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
					return
				}
				errCh <- nil
			}()
			select {
			case err := <-errCh:
				return err
			case <-gctx.Done():
				return metricsSrv.Shutdown(context.Background())
			}
		})
	} else {
		logger.Info("metrics collection disabled")
	}

	logger.Info("nomadd running, press Ctrl+C to stop")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("nomadd exited with error: %w", err)
	}

	logger.Info("nomadd stopped gracefully")
	return nil
}
