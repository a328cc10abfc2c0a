// Command mediaflowd runs the mediaflow daemon with the default configuration
// lookup. It is equivalent to `mediaflow serve`.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/daemonrun"
)

func main() {
	var configPath, logLevel string
	cmd := &cobra.Command{
		Use:           "mediaflowd",
		Short:         "Run the mediaflow daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
