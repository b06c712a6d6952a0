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
	"github.com/spf13/cobra"

	"github.com/seongkah/signing-for-paas-sub002/internal/config"
	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
	"github.com/seongkah/signing-for-paas-sub002/internal/monitor"
	"github.com/seongkah/signing-for-paas-sub002/internal/observability"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring engine on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.Monitor.Interval = interval
			}
			return runMonitor(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Override monitoring interval (e.g. 30m)")

	return cmd
}

func runMonitor(ctx context.Context, cfg *config.Config) error {
	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Monitor.CycleLog != "" {
		logger, closer, err := logging.OpenCycleLog(cfg.ResolvePath(cfg.Monitor.CycleLog))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		eng.SetCycleLog(logger)
	}

	metricsSrv, err := startMetricsServer(cfg, eng)
	if err != nil {
		return err
	}
	defer func() {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(context.Background())
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCycle := func() {
		report, err := eng.GenerateDashboard(signalCtx, logging.TriggerScheduled)
		switch {
		case errors.Is(err, monitor.ErrCycleInProgress):
			fmt.Fprintln(os.Stderr, "cycle still running, skipping trigger")
		case err != nil:
			fmt.Fprintf(os.Stderr, "cycle failed: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "cycle complete: status=%s alerts=%d\n", report.Overall, len(report.Alerts))
		}
	}

	runCycle()

	ticker := time.NewTicker(cfg.Monitor.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-signalCtx.Done():
			return nil
		case <-ticker.C:
			runCycle()
		}
	}
}

func startMetricsServer(cfg *config.Config, eng *monitor.Engine) (*http.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	eng.SetMetrics(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv, nil
}
