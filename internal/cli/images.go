package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sewing-planner/internal/fsutil"
	"sewing-planner/internal/planner"
	"sewing-planner/internal/project"
)

func newImagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Project image commands",
	}
	cmd.AddCommand(newImagesImportCmd(app))
	cmd.AddCommand(newImagesListCmd(app))
	cmd.AddCommand(newImagesExportCmd(app))
	cmd.AddCommand(newImagesDeleteCmd(app))
	return cmd
}

func newImagesImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project-id> <file>...",
		Short: "Import image files into a project (stored as PNG)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, projectID, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				for _, path := range args[1:] {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					eff, err := s.Aggregate.ImportImage(data, filepath.Base(path))
					if err != nil {
						return err
					}
					if err := s.Do(ctx, eff); err != nil {
						return err
					}
				}
				return writeOut(cmd, app, map[string]any{"data": s.Aggregate.Snapshot().Images})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

type imageRow struct {
	ID       int64  `json:"id" yaml:"id"`
	FilePath string `json:"filePath" yaml:"filePath"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
	Missing  bool   `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func newImagesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			agg, err := p.GetProjectSnapshot(ctx, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			images := agg.Snapshot().Images
			loaded, err := p.LoadImages(ctx, images)
			if err != nil {
				return writeErr(cmd, err)
			}
			rows := make([]imageRow, 0, len(images))
			for _, im := range images {
				row := imageRow{ID: im.ID, FilePath: im.FilePath}
				if data, ok := loaded[im.ID]; ok {
					row.Size = humanize.Bytes(uint64(len(data)))
				} else {
					row.Missing = true
				}
				rows = append(rows, row)
			}
			return writeOut(cmd, app, map[string]any{"data": rows})
		},
	}
}

func newImagesExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export <image-id> <dest>",
		Short: "Copy a stored image (PNG) to dest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := parseID("image", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			projectID, err := p.ProjectOfImage(ctx, imageID)
			if err != nil {
				return writeErr(cmd, err)
			}
			agg, err := p.GetProjectSnapshot(ctx, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			for _, im := range agg.Snapshot().Images {
				if im.ID != imageID {
					continue
				}
				data, ok, err := p.ImageBytes(im)
				if err != nil {
					return writeErr(cmd, err)
				}
				if !ok {
					return writeErr(cmd, project.NotFoundError{Kind: "image file", ID: imageID})
				}
				if err := fsutil.WriteFileAtomic(args[1], data, 0o644); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"id":   imageID,
					"path": args[1],
					"size": humanize.Bytes(uint64(len(data))),
				}})
			}
			return writeErr(cmd, project.NotFoundError{Kind: "image", ID: imageID})
		},
	}
}

func newImagesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>...",
		Short: "Delete images (all from the same project)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("image", args)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			p, err := app.open(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			projectID, err := p.ProjectOfImage(ctx, ids[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = withSession(cmd, app, projectID, func(ctx context.Context, _ *planner.Planner, s *planner.Session) error {
				eff, err := s.Aggregate.DeleteImages(ids...)
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
