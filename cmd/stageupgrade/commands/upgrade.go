package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dcshock/stageupgrade/cmd/stageupgrade/handlers"
)

// Upgrade returns the command that upgrades a pipeline record.
func Upgrade() *cobra.Command {
	var opts handlers.UpgradeOptions

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade a pipeline record to the current stage versions",
		Long: `Upgrade every stage of a pipeline record using the upgraders declared in
a definitions file. The upgraded record is written as YAML to stdout or to
--output. The first stage that cannot be upgraded aborts the command and
nothing is written.

With --database-url (or DATABASE_URL) every upgrader invocation is recorded
in the stage_upgrade_run table, which is created if missing.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Upgrade(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DefinitionsPath, "definitions", "d", "", "Path to the upgrade definitions file")
	cmd.Flags().StringVarP(&opts.RecordPath, "record", "r", "", "Path to the pipeline record")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "Write the upgraded record here instead of stdout")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL for the audit trail")
	_ = cmd.MarkFlagRequired("definitions")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
