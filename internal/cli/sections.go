package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"sewing-planner/internal/planner"
	"sewing-planner/internal/project"
)

func newSectionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Section commands",
	}
	cmd.AddCommand(newSectionsAddCmd(app))
	cmd.AddCommand(newSectionsRenameCmd(app))
	cmd.AddCommand(newSectionsDeleteCmd(app))
	return cmd
}

func newSectionsAddCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a section to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, projectID, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				if err := s.Do(ctx, s.Aggregate.AddSection()); err != nil {
					return err
				}
				secs := s.Aggregate.Snapshot().Sections
				id := secs[len(secs)-1].Section.ID
				if name != "" {
					eff, err := s.Aggregate.RenameSection(id, name)
					if err != nil {
						return err
					}
					if err := s.Do(ctx, eff); err != nil {
						return err
					}
				}
				sec, _ := sectionView(s, id)
				return writeOut(cmd, app, map[string]any{"data": sec})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", `Section name (default: "Section N")`)
	return cmd
}

func newSectionsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <section-id> <name>",
		Short: "Rename a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withSectionSession(cmd, app, args[0], func(ctx context.Context, s *planner.Session, sectionID int64) error {
				eff, err := s.Aggregate.RenameSection(sectionID, args[1])
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				sec, _ := sectionView(s, sectionID)
				return writeOut(cmd, app, map[string]any{"data": sec})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newSectionsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withSectionSession(cmd, app, args[0], func(ctx context.Context, s *planner.Session, sectionID int64) error {
				eff, err := s.Aggregate.DeleteSection(sectionID)
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": sectionID, "deleted": true}})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

// withSectionSession opens the session of the project owning arg's section.
func withSectionSession(cmd *cobra.Command, app *App, arg string, fn func(ctx context.Context, s *planner.Session, sectionID int64) error) error {
	sectionID, err := parseID("section", arg)
	if err != nil {
		return err
	}
	p, err := app.open(cmdContext(cmd))
	if err != nil {
		return err
	}
	projectID, err := p.ProjectOfSection(cmdContext(cmd), sectionID)
	if err != nil {
		if planner.IsNotFound(err) {
			return project.NotFoundError{Kind: "section", ID: sectionID}
		}
		return err
	}
	return withSession(cmd, app, projectID, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
		return fn(ctx, s, sectionID)
	})
}

// withItemSession opens the session of the project owning the first item.
func withItemSession(cmd *cobra.Command, app *App, args []string, fn func(ctx context.Context, s *planner.Session, itemIDs []int64) error) error {
	ids, err := parseIDs("item", args)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("no item ids given")
	}
	p, err := app.open(cmdContext(cmd))
	if err != nil {
		return err
	}
	projectID, err := p.ProjectOfItem(cmdContext(cmd), ids[0])
	if err != nil {
		if planner.IsNotFound(err) {
			return project.NotFoundError{Kind: "item", ID: ids[0]}
		}
		return err
	}
	return withSession(cmd, app, projectID, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
		return fn(ctx, s, ids)
	})
}
