package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Long: `Apply the forwarder schema to the configured database.

Example:
  forwarder migrate --dsn "file:forwarder.db?_foreign_keys=on"
  forwarder migrate --driver postgres --dsn postgres://localhost/forwarder?sslmode=disable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openPersistence(cmd.Context(), rootOpts, true)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", rootOpts.Driver)
			return nil
		},
	}
}
