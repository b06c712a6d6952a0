package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seongkah/signing-for-paas-sub002/internal/alerting"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate, list, and manage alerts",
	}

	cmd.AddCommand(newAlertsCheckCmd())
	cmd.AddCommand(newAlertsListCmd())
	cmd.AddCommand(newAlertsAckCmd())
	cmd.AddCommand(newAlertsUpdateRuleCmd())

	return cmd
}

func newAlertsCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate all alert rules once",
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

			fired, err := eng.CheckAlerts()
			if err != nil {
				return err
			}
			if len(fired) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no alerts fired")
				return err
			}
			return printJSON(cmd, fired)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func newAlertsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged alerts, most recent first",
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

			active, err := eng.Alerts().ActiveAlerts()
			if err != nil {
				return err
			}
			if len(active) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no active alerts")
				return err
			}
			return printJSON(cmd, active)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func newAlertsAckCmd() *cobra.Command {
	var configPath string
	var actor string

	cmd := &cobra.Command{
		Use:   "ack <alert-id>",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return errors.New("--by is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			eng, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.Alerts().Acknowledge(args[0], actor); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "alert %s acknowledged by %s\n", args[0], actor)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&actor, "by", "", "Acknowledging operator")

	return cmd
}

func newAlertsUpdateRuleCmd() *cobra.Command {
	var configPath string
	var enable, disable bool
	var threshold float64
	var window, cooldown time.Duration
	var severity, urlFilter string

	cmd := &cobra.Command{
		Use:   "update-rule <rule-id>",
		Short: "Update fields of an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			eng, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var patch alerting.RulePatch
			if enable {
				v := true
				patch.Enabled = &v
			}
			if disable {
				v := false
				patch.Enabled = &v
			}
			if cmd.Flags().Changed("threshold") {
				patch.Threshold = &threshold
			}
			if cmd.Flags().Changed("window") {
				patch.Window = &window
			}
			if cmd.Flags().Changed("cooldown") {
				patch.Cooldown = &cooldown
			}
			if cmd.Flags().Changed("severity") {
				patch.Severity = &severity
			}
			if cmd.Flags().Changed("url-filter") {
				patch.URLFilter = &urlFilter
			}

			rule, err := eng.Alerts().UpdateRule(args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd, rule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the rule")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the rule")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "New threshold")
	cmd.Flags().DurationVar(&window, "window", 0, "New evaluation window")
	cmd.Flags().DurationVar(&cooldown, "cooldown", 0, "New cooldown duration")
	cmd.Flags().StringVar(&severity, "severity", "", "New severity: info|warning|critical")
	cmd.Flags().StringVar(&urlFilter, "url-filter", "", "New URL scope filter")

	return cmd
}
