package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBaselineCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Capture a new baseline snapshot of signing behavior",
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

			snap, err := eng.CreateBaseline(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "baseline captured: %d/%d cases succeeded\n",
				snap.Successes(), len(snap.Results))
			return printJSON(cmd, snap)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
