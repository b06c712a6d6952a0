package main

import (
	"github.com/spf13/cobra"
)

func newTrendsCmd() *cobra.Command {
	var configPath string
	var window int

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Compute directional trends over the run history",
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

			trends, err := eng.Trends(window)
			if err != nil {
				return err
			}
			return printJSON(cmd, trends)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().IntVar(&window, "window", 0, "History window size (default from config)")

	return cmd
}

func newRiskCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Predict the current risk level",
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

			assessment, err := eng.PredictRisk(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, assessment)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
