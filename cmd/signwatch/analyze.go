package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare current signing behavior against the baseline",
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

			result, err := eng.AnalyzeChanges(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
