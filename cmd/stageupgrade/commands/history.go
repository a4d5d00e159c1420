package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dcshock/stageupgrade/cmd/stageupgrade/handlers"
	"github.com/dcshock/stageupgrade/observer"
)

// History returns the command that lists recorded upgrader invocations.
func History() *cobra.Command {
	var (
		databaseURL string
		jsonOutput  bool
		filter      observer.HistoryFilter
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded upgrader invocations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.History(cmd.Context(), cmd.OutOrStdout(), databaseURL, filter, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL of the audit trail")
	cmd.Flags().StringVar(&filter.Library, "library", "", "Only show this library")
	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only show this stage")
	cmd.Flags().StringVar(&filter.Instance, "instance", "", "Only show this instance")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum number of rows")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
