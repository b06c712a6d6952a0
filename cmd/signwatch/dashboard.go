package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/seongkah/signing-for-paas-sub002/internal/dashboard"
	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
)

// errStatusCritical makes a critical dashboard exit non-zero so external
// schedulers can page on it.
var errStatusCritical = errors.New("overall status critical")

func newDashboardCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Run one full monitoring cycle and print the status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
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

			report, err := eng.GenerateDashboard(cmd.Context(), logging.TriggerManual)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if report.Overall == dashboard.Critical {
				return errStatusCritical
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
