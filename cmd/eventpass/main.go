// Command eventpass polls the registration sheet and issues e-tickets.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/ignite/eventpass/internal/api"
	"github.com/ignite/eventpass/internal/config"
	"github.com/ignite/eventpass/internal/metrics"
	"github.com/ignite/eventpass/internal/pipeline"
	"github.com/ignite/eventpass/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("eventpass stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		once       bool
		noServer   bool
	)
	flagSet := pflag.NewFlagSet("eventpass", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	flagSet.BoolVar(&once, "once", false, "run a single poll cycle and exit")
	flagSet.BoolVar(&noServer, "no-server", false, "do not start the status API")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	proc := pipeline.NewProcessor(pipeline.Deps{
		Rows:      svc.rows,
		Store:     svc.store,
		Renderer:  svc.renderer,
		Publisher: svc.publisher,
		Notifier:  svc.notifier,
		Errors:    svc.errors,
		Metrics:   m,
	}, pipeline.Options{
		QRFolder:           cfg.Assets.QRFolder,
		TicketsFolder:      cfg.Assets.TicketsFolder,
		TempDir:            cfg.Assets.TempDir,
		ReuseRowAttendeeID: cfg.Identity.ReuseRowAttendeeID,
	})
	poller := pipeline.NewPoller(svc.rows, proc, pipeline.PollerConfig{
		Columns:      cfg.Columns,
		Interval:     cfg.Polling.Interval(),
		ErrorBackoff: cfg.Polling.ErrorBackoff(),
		Lease:        svc.lease,
		Errors:       svc.errors,
		Metrics:      m,
	})

	if once {
		return poller.RunOnce(ctx)
	}

	var server *api.Server
	if cfg.Server.Enabled && !noServer {
		server = api.NewServer(svc.store, svc.errors, reg)
		go func() {
			if err := server.ListenAndServe(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status API failed", "error", err)
			}
		}()
	}

	logger.Info("eventpass started",
		"sheet", cfg.Sheet.Name,
		"storage", cfg.Storage.Backend,
		"assets", cfg.Assets.Backend,
		"email", cfg.Email.Backend,
		"interval", cfg.Polling.Interval().String())

	runErr := poller.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status API shutdown error", "error", err)
		}
	}
	logger.Info("eventpass stopped")
	return runErr
}
