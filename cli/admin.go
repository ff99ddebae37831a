package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/plansync/cli/helpers"
	"github.com/compozy/plansync/engine/infra/repo"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/compozy/plansync/pkg/version"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := repo.Migrate(ctx, &cfg.Database); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.FromContext(ctx).Info("Migrations applied", "driver", cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().String("db-driver", "", "Database driver (sqlite, postgres)")
	cmd.Flags().String("db-path", "", "SQLite database path")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			info := version.Get()
			if format == helpers.OutputFormatJSON {
				return helpers.WriteJSON(cmd.OutOrStdout(), info)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}
