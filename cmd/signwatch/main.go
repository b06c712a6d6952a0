package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seongkah/signing-for-paas-sub002/internal/config"
	"github.com/seongkah/signing-for-paas-sub002/internal/fetch"
	"github.com/seongkah/signing-for-paas-sub002/internal/monitor"
	"github.com/seongkah/signing-for-paas-sub002/internal/ratelimit"
	"github.com/seongkah/signing-for-paas-sub002/internal/signer"
	"github.com/seongkah/signing-for-paas-sub002/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "signwatch",
		Short:        "Signwatch signing-algorithm drift monitor",
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newBaselineCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newWebClientCmd())
	root.AddCommand(newTrendsCmd())
	root.AddCommand(newRiskCmd())
	root.AddCommand(newDashboardCmd())
	root.AddCommand(newAlertsCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires the collaborators the way the config describes them.
// The returned cleanup closes the store.
func buildEngine(cfg *config.Config) (*monitor.Engine, func(), error) {
	st, err := store.OpenSQLite(cfg.ResolvePath(cfg.Store.Path))
	if err != nil {
		return nil, nil, err
	}

	limiter := ratelimit.NewLimiter()
	sig := signer.NewClient(cfg.Signer.Endpoint, cfg.Signer.Timeout, limiter, cfg.Signer.RPS, cfg.Signer.Burst)
	fetcher := fetch.NewClient(cfg.WebClient.Timeout, cfg.WebClient.MaxBodyBytes, limiter, cfg.WebClient.RPS, cfg.WebClient.Burst)

	eng, err := monitor.New(cfg, sig, fetcher, st, version)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return eng, func() { _ = st.Close() }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a Signwatch configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(configPath); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%s commit=%s buildDate=%s\n", version, commit, buildDate)
		},
	}
}
