// Package commands defines the CLI command structure and flag bindings.
// Command execution is delegated to the handlers package.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dcshock/stageupgrade/cmd/stageupgrade/handlers"
	"github.com/dcshock/stageupgrade/ctxlog"
)

// Root returns the root command for the stageupgrade CLI.
func Root() *cobra.Command {
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:           "stageupgrade",
		Short:         "Upgrade persisted pipeline stage configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := handlers.NewLogger(cmd.ErrOrStderr(), logLevel, logFormat)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(ctxlog.WithLogger(ctx, logger))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(Upgrade())
	cmd.AddCommand(Plan())
	cmd.AddCommand(History())

	return cmd
}
