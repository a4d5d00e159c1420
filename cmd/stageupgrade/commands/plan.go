package commands

import (
	"github.com/spf13/cobra"

	"github.com/dcshock/stageupgrade/cmd/stageupgrade/handlers"
)

// Plan returns the command that shows what upgrade would do.
func Plan() *cobra.Command {
	var definitionsPath, recordPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which stages of a pipeline record need an upgrade",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), cmd.OutOrStdout(), definitionsPath, recordPath)
		},
	}

	cmd.Flags().StringVarP(&definitionsPath, "definitions", "d", "", "Path to the upgrade definitions file")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Path to the pipeline record")
	_ = cmd.MarkFlagRequired("definitions")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
