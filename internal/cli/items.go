package cli

import (
	"context"

	"github.com/spf13/cobra"

	"sewing-planner/internal/planner"
	"sewing-planner/internal/project"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Section item commands",
	}
	cmd.AddCommand(newItemsAddCmd(app))
	cmd.AddCommand(newItemsEditCmd(app))
	cmd.AddCommand(newItemsToggleCmd(app))
	cmd.AddCommand(newItemsDeleteCmd(app))
	cmd.AddCommand(newItemsMoveCmd(app))
	return cmd
}

func newItemsAddCmd(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "add <section-id> <text>",
		Short: "Add an item at the end of a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withSectionSession(cmd, app, args[0], func(ctx context.Context, s *planner.Session, sectionID int64) error {
				eff, err := s.Aggregate.AddItem(sectionID, args[1], note)
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				sec, _ := sectionView(s, sectionID)
				return writeOut(cmd, app, map[string]any{"data": sec.Items[len(sec.Items)-1]})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note attached to the item")
	return cmd
}

func newItemsEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <item-id> <text>",
		Short: "Change an item's text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withItemSession(cmd, app, args[:1], func(ctx context.Context, s *planner.Session, ids []int64) error {
				eff, err := s.Aggregate.UpdateItemText(ids[0], args[1])
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				it, _ := itemView(s, ids[0])
				return writeOut(cmd, app, map[string]any{"data": it})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newItemsToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <item-id>",
		Short: "Flip an item's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withItemSession(cmd, app, args, func(ctx context.Context, s *planner.Session, ids []int64) error {
				eff, err := s.Aggregate.ToggleItemComplete(ids[0])
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				it, _ := itemView(s, ids[0])
				return writeOut(cmd, app, map[string]any{"data": it})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newItemsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>...",
		Short: "Delete items (all from the same project)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withItemSession(cmd, app, args, func(ctx context.Context, s *planner.Session, ids []int64) error {
				eff, err := s.Aggregate.DeleteItems(ids...)
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"ids": ids, "deleted": true}})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newItemsMoveCmd(app *App) *cobra.Command {
	var to int

	cmd := &cobra.Command{
		Use:   "move <item-id> --to <index>",
		Short: "Move an item within its section",
		Long:  "Move an item to a zero-based position among the other items of its section. Out of range positions are clamped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withItemSession(cmd, app, args, func(ctx context.Context, s *planner.Session, ids []int64) error {
				it, ok := itemView(s, ids[0])
				if !ok {
					return project.NotFoundError{Kind: "item", ID: ids[0]}
				}
				eff, err := s.Aggregate.ReorderItems(it.Item.SectionID, ids[0], to)
				if err != nil {
					return err
				}
				if err := s.Do(ctx, eff); err != nil {
					return err
				}
				sec, _ := sectionView(s, it.Item.SectionID)
				return writeOut(cmd, app, map[string]any{"data": sec})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "Target position")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
