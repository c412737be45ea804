package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.infratographer.com/x/viperx"

	"go.infratographer.com/loadbalancer-controlplane/internal/config"
)

// checkBackendCmd checks the connection to the configured rest backends
var checkBackendCmd = &cobra.Command{
	Use:   "check_backend",
	Short: "checks the connection to the configured rest backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkBackends(cmd.Context(), viper.GetViper())
	},
}

const (
	defaultRetryLimit    = 3
	defaultRetryInterval = 1 * time.Second
)

func init() {
	rootCmd.AddCommand(checkBackendCmd)

	checkBackendCmd.PersistentFlags().Int("retries", defaultRetryLimit, "Number of attempts to verify connection to each backend")
	viperx.MustBindFlag(viper.GetViper(), "retries", checkBackendCmd.PersistentFlags().Lookup("retries"))

	checkBackendCmd.PersistentFlags().Duration("retry-interval", defaultRetryInterval, "Interval between checks")
	viperx.MustBindFlag(viper.GetViper(), "retry-interval", checkBackendCmd.PersistentFlags().Lookup("retry-interval"))
}

func checkBackends(ctx context.Context, viper *viper.Viper) error {
	for _, p := range config.AppConfig.Providers {
		if p.Kind != config.ProviderKindREST && p.Kind != config.ProviderKindRESTAsync {
			continue
		}

		client := newRemoteClient(ctx, p)

		if err := client.WaitForReady(
			ctx,
			viper.GetInt("retries"),
			viper.GetDuration("retry-interval"),
		); err != nil {
			logger.Fatalw("backend is not ready", "provider", p.Name, "url", p.URL, "error", err)
		}
	}

	return nil
}
