package main

import (
	"mwdb/pkg/logger"

	"github.com/spf13/cobra"
)

// migrateCommand constructs the 'migrate' subcommand that creates the marker
// table and River's job tables, migrating both to the latest version.
func (a *app) migrateCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrates database to the latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			strg, closeStrg, err := a.openPostgres(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeStrg()

			if err := strg.Migrate(ctx); err != nil {
				return err //nolint: wrapcheck
			}
			logger.Info(ctx, "database migrated")

			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL, defaults to the config value")

	return cmd
}
