package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long:  "Opening the database always applies pending migrations; this command reports what was applied and what is recorded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			applied, err := p.Migrate(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			all, err := p.Migrations(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if applied == nil {
				applied = []string{}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"database":   p.DB().Path(),
				"applied":    applied,
				"migrations": all,
			}})
		},
	}
}
