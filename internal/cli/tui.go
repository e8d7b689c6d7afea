package cli

import (
	"context"

	"github.com/spf13/cobra"

	"sewing-planner/internal/planner"
	"sewing-planner/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [project-id]",
		Short: "Open a project in the interactive TUI (default: the last opened one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = parseID("project", args[0]); err != nil {
					return writeErr(cmd, err)
				}
			}
			return runTUI(cmd, app, id)
		},
	}
}

// runTUI opens projectID, falling back to the last opened project and then
// to a new one.
func runTUI(cmd *cobra.Command, app *App, projectID int64) error {
	ctx := cmdContext(cmd)
	p, err := app.open(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	if projectID == 0 {
		projectID = p.Settings().LastProjectID()
	}
	if projectID != 0 {
		if _, err := p.GetProjectSnapshot(ctx, projectID); planner.IsNotFound(err) {
			projectID = 0
		} else if err != nil {
			return writeErr(cmd, err)
		}
	}
	if projectID == 0 {
		if projectID, err = p.CreateProject(ctx); err != nil {
			return writeErr(cmd, err)
		}
	}
	err = withSession(cmd, app, projectID, func(ctx context.Context, p *planner.Planner, s *planner.Session) error {
		return tui.Run(ctx, p, s)
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
