package cli

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sewing-planner/internal/planner"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	cmd.AddCommand(newProjectsCreateCmd(app))
	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsShowCmd(app))
	cmd.AddCommand(newProjectsRenameCmd(app))
	cmd.AddCommand(newProjectsCompleteCmd(app))
	cmd.AddCommand(newProjectsDeleteCmd(app))
	return cmd
}

func newProjectsCreateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := p.CreateProject(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, id, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				if name != "" {
					eff, err := s.Aggregate.RenameProject(name)
					if err != nil {
						return err
					}
					if err := s.Do(ctx, eff); err != nil {
						return err
					}
				}
				return writeOut(cmd, app, map[string]any{"data": s.Aggregate.Snapshot().Project})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: "+planner.PlaceholderName+")")
	return cmd
}

type projectRow struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Completed bool   `json:"completed" yaml:"completed"`
	Updated   string `json:"updated" yaml:"updated"`
}

func newProjectsListCmd(app *App) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if summary {
				entries, err := p.ListProjectsSummary(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": entries})
			}
			projects, err := p.ListProjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			now := time.Now()
			rows := make([]projectRow, 0, len(projects))
			for _, pr := range projects {
				rows = append(rows, projectRow{
					ID:        pr.ID,
					Name:      pr.Name,
					Completed: pr.Completed,
					Updated:   humanize.RelTime(pr.UpdateDate, now, "ago", "from now"),
				})
			}
			return writeOut(cmd, app, map[string]any{"data": rows})
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Only ids and names (the shared list shape)")
	return cmd
}

func newProjectsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its sections, items and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			agg, err := p.GetProjectSnapshot(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": agg.Snapshot()})
		},
	}
}

func newProjectsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project-id> <name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, id, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				eff, err := s.Aggregate.RenameProject(args[1])
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": s.Aggregate.Snapshot().Project})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newProjectsCompleteCmd(app *App) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete <project-id>",
		Short: "Mark a project completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, id, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				eff, err := s.Aggregate.SetProjectCompleted(!undo)
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": s.Aggregate.Snapshot().Project})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the project not completed")
	return cmd
}

func newProjectsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := p.DeleteProject(ctx, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "deleted": true}})
		},
	}
}
