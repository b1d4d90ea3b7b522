package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/chatadmin/internal/config"
	"github.com/me/chatadmin/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	cfg    config.Config
)

// NewRootCmd creates the root cobra command for the chatadmin portal.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatadmin",
		Short: "chatadmin — web admin portal for a chat service",
		Long:  "chatadmin serves the administrative front end of a multi-tenant chat service: account management, invitations, circles, and self-service profile settings.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagDebug {
				flagLogLevel = "debug"
			}
			if cmd.Flags().Changed("log-level") || flagDebug {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			logger = logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
	)

	return root
}
