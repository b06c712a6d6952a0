package main

import (
	"github.com/spf13/cobra"
)

func newWebClientCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "webclient",
		Short: "Diff the upstream web client assets against cached snapshots",
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

			return printJSON(cmd, eng.MonitorWebClient(cmd.Context()))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
