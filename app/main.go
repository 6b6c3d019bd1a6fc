package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/xavierroma/vala/app/config"
	"github.com/xavierroma/vala/app/events"
	"github.com/xavierroma/vala/app/logging"
	"github.com/xavierroma/vala/app/metrics"
	"github.com/xavierroma/vala/app/server"
	"github.com/xavierroma/vala/app/tracing"

	"golang.org/x/sync/errgroup"
)

const (
	applicationName    = "vala"
	applicationVersion = "0.1.0"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, flags, err := config.Load(applicationName, args)
	if err != nil {
		fmt.Println("Could not load configuration:", err.Error())
		return 1
	}
	if flags.PrintVersion {
		fmt.Println(applicationName, applicationVersion)
		return 0
	}

	logger := logging.New(cfg.Logging)
	defer logger.Close()
	for _, w := range cfg.LoaderWarnings {
		logger.Warn(w, nil)
	}
	logger.Info("application loaded from configuration", logging.Pairs{
		"name": applicationName, "version": applicationVersion, "logLevel": logger.Level(),
	})

	tracer, err := tracing.New(cfg.Tracing, nil)
	if err != nil {
		logger.Error("failed to start tracer", logging.Pairs{"detail": err.Error()})
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Shutdown(ctx)
	}()

	bus := events.NewBus(logger)
	bus.Subscribe(events.Stopping, func(context.Context, any) {
		logger.Info("shutting down", nil)
	})

	srv := server.New(cfg, logger, server.WithTracer(tracer), server.WithEvents(bus))
	if err := registerRoutes(srv, cfg, logger); err != nil {
		logger.Error("route registration failed", logging.Pairs{"detail": err.Error()})
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(ctx, server.ListenOptions{
			Port:     cfg.Frontend.ListenPort,
			Hostname: cfg.Frontend.ListenAddress,
			Running:  func(msg string) { logger.Info(msg, nil) },
		})
	})
	if cfg.Metrics.ListenPort > 0 {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("exiting due to listener error", logging.Pairs{"detail": err.Error()})
		return 1
	}
	return 0
}

// serveMetrics exposes /metrics until ctx is cancelled
func serveMetrics(ctx context.Context, cfg *config.MetricsConfig, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.ListenPort)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	logger.Info("metrics http endpoint starting", logging.Pairs{"address": srv.Addr})

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
