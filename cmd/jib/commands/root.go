package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jibmail/jib/internal/config"
	"github.com/jibmail/jib/internal/logging"
)

var (
	// Global configuration
	configPath string
	cfg        *config.Config

	// Root command
	rootCmd = &cobra.Command{
		Use:   "jib",
		Short: "Jib outbound mail delivery engine",
		Long: `Jib delivers validated message envelopes to their destination hosts:
it groups recipients by domain, resolves each domain's mail exchanger, drives
one SMTP session per domain, and spools a bounce notification for any
recipient the remote host rejects.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return
			}

			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
				os.Exit(1)
			}
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
}
