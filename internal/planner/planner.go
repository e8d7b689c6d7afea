package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sewing-planner/internal/config"
	"sewing-planner/internal/imagestore"
	"sewing-planner/internal/model"
	"sewing-planner/internal/project"
	"sewing-planner/internal/reorder"
	"sewing-planner/internal/settings"
	"sewing-planner/internal/sharedlist"
	"sewing-planner/internal/store"
)

// PlaceholderName is the name a new project gets until the user renames it.
const PlaceholderName = "Untitled Project"

// imageLoadLimit bounds concurrent image reads.
const imageLoadLimit = 4

// Planner wires the database, the image store, the shared project list and
// settings together. It is what the CLI and TUI talk to.
type Planner struct {
	cfg      *config.Config
	db       *store.DB
	images   *imagestore.Store
	shared   *sharedlist.File
	settings *settings.Store
	log      zerolog.Logger
}

// Open opens (creating and migrating if needed) everything under cfg's data
// directory. A *store.ConfigError means the installation is unusable.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Planner, error) {
	db, err := store.Open(ctx, cfg.DBPath(),
		store.WithLogger(log.With().Str("component", "store").Logger()),
		store.WithBusyTimeout(cfg.BusyTimeout),
	)
	if err != nil {
		return nil, err
	}
	return &Planner{
		cfg:      cfg,
		db:       db,
		images:   imagestore.New(cfg.ImagesPath(), imagestore.WithLogger(log.With().Str("component", "images").Logger())),
		shared:   sharedlist.New(cfg.SharedListPath()),
		settings: settings.Open(cfg.SettingsPath()),
		log:      log,
	}, nil
}

func (p *Planner) Close() error { return p.db.Close() }

func (p *Planner) Config() *config.Config { return p.cfg }
func (p *Planner) DB() *store.DB { return p.db }
func (p *Planner) Images() *imagestore.Store { return p.images }
func (p *Planner) SharedList() *sharedlist.File { return p.shared }
func (p *Planner) Settings() *settings.Store { return p.settings }
func (p *Planner) Persister() project.Persister { return &persister{db: p.db, images: p.images, log: p.log} }

// CreateProject inserts a project named PlaceholderName and rewrites the
// shared project list.
func (p *Planner) CreateProject(ctx context.Context) (int64, error) {
	var id int64
	err := p.db.Write(ctx, func(w *store.Writer) error {
		var err error
		id, err = store.Insert(ctx, w, &model.Project{Name: PlaceholderName})
		return err
	})
	if err != nil {
		return 0, err
	}
	p.refreshSharedListBestEffort(ctx)
	return id, nil
}

// DeleteProject soft-deletes a project and drops it from the shared list.
func (p *Planner) DeleteProject(ctx context.Context, id int64) error {
	err := p.db.Write(ctx, func(w *store.Writer) error {
		return store.SoftDelete[model.Project](ctx, w, id)
	})
	if err != nil {
		return err
	}
	p.refreshSharedListBestEffort(ctx)
	return nil
}

// ListProjects returns every visible project by id.
func (p *Planner) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	err := p.db.Read(ctx, func(r *store.Reader) error {
		var err error
		out, err = store.FetchAll[model.Project](ctx, r, store.Criteria{})
		return err
	})
	return out, err
}

// ListProjectsSummary returns {id, name} for every visible project.
func (p *Planner) ListProjectsSummary(ctx context.Context) ([]sharedlist.Entry, error) {
	projects, err := p.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sharedlist.Entry, 0, len(projects))
	for _, pr := range projects {
		out = append(out, sharedlist.Entry{ID: pr.ID, Name: pr.Name})
	}
	return out, nil
}

// RefreshSharedList rewrites the shared list from the project table.
func (p *Planner) RefreshSharedList(ctx context.Context) error {
	entries, err := p.ListProjectsSummary(ctx)
	if err != nil {
		return err
	}
	return p.shared.Write(entries)
}

func (p *Planner) refreshSharedListBestEffort(ctx context.Context) {
	if err := p.RefreshSharedList(ctx); err != nil {
		p.log.Warn().Err(err).Str("path", p.shared.Path()).Msg("shared list refresh failed")
	}
}

// GetProjectSnapshot loads a project and everything visible under it in
// one read transaction.
func (p *Planner) GetProjectSnapshot(ctx context.Context, id int64, opts ...project.Option) (*project.Aggregate, error) {
	var (
		pr       model.Project
		sections []model.Section
		items    []model.SectionItem
		notes    []model.SectionItemNote
		images   []model.ProjectImage
	)
	err := p.db.Read(ctx, func(r *store.Reader) error {
		var err error
		if pr, err = store.FetchOne[model.Project](ctx, r, store.Criteria{ID: id}); err != nil {
			return err
		}
		if sections, err = store.FetchAll[model.Section](ctx, r, store.Criteria{ParentID: id}); err != nil {
			return err
		}
		if len(sections) > 0 {
			secIDs := make([]int64, len(sections))
			for i, sec := range sections {
				secIDs[i] = sec.ID
			}
			if items, err = store.FetchAll[model.SectionItem](ctx, r, store.Criteria{ParentIDs: secIDs}); err != nil {
				return err
			}
		}
		if len(items) > 0 {
			itemIDs := make([]int64, len(items))
			for i, it := range items {
				itemIDs[i] = it.ID
			}
			if notes, err = store.FetchAll[model.SectionItemNote](ctx, r, store.Criteria{ParentIDs: itemIDs}); err != nil {
				return err
			}
		}
		images, err = store.FetchAll[model.ProjectImage](ctx, r, store.Criteria{ParentID: id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return project.Load(pr, sections, items, notes, images, opts...), nil
}

// SectionItems returns a section's visible items in order.
func (p *Planner) SectionItems(ctx context.Context, sectionID int64) ([]model.SectionItem, error) {
	var out []model.SectionItem
	err := p.db.Read(ctx, func(r *store.Reader) error {
		var err error
		out, err = store.FetchAll[model.SectionItem](ctx, r, store.Criteria{ParentID: sectionID})
		return err
	})
	if err != nil {
		return nil, err
	}
	reorder.SortItems(out)
	return out, nil
}

// ImageBytes reads a stored image. ok is false when the file is gone.
func (p *Planner) ImageBytes(im model.ProjectImage) (data []byte, ok bool, err error) {
	return p.images.ReadImage(im.FilePath)
}

// LoadImages reads the given images concurrently. Missing files are left
// out of the result.
func (p *Planner) LoadImages(ctx context.Context, images []model.ProjectImage) (map[int64][]byte, error) {
	results := make([][]byte, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(imageLoadLimit)
	for i, im := range images {
		if im.FilePath == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, ok, err := p.images.ReadImage(im.FilePath)
			if err != nil {
				return fmt.Errorf("image %d: %w", im.ID, err)
			}
			if ok {
				results[i] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int64][]byte, len(images))
	for i, im := range images {
		if results[i] != nil {
			out[im.ID] = results[i]
		}
	}
	return out, nil
}

// Migrate re-runs pending migrations and returns the applied names.
func (p *Planner) Migrate(ctx context.Context) ([]string, error) { return p.db.Migrate(ctx) }

// Migrations lists applied migrations.
func (p *Planner) Migrations(ctx context.Context) ([]string, error) { return p.db.Migrations(ctx) }

// IsNotFound reports whether err means the addressed row does not exist.
func IsNotFound(err error) bool {
	var nf project.NotFoundError
	return errors.Is(err, store.ErrNotFound) || errors.As(err, &nf)
}

// ProjectOfSection returns the project a visible section belongs to.
func (p *Planner) ProjectOfSection(ctx context.Context, sectionID int64) (int64, error) {
	var projectID int64
	err := p.db.Read(ctx, func(r *store.Reader) error {
		sec, err := store.FetchOne[model.Section](ctx, r, store.Criteria{ID: sectionID})
		projectID = sec.ProjectID
		return err
	})
	return projectID, err
}

// ProjectOfItem returns the project a visible item belongs to.
func (p *Planner) ProjectOfItem(ctx context.Context, itemID int64) (int64, error) {
	var sectionID int64
	err := p.db.Read(ctx, func(r *store.Reader) error {
		it, err := store.FetchOne[model.SectionItem](ctx, r, store.Criteria{ID: itemID})
		sectionID = it.SectionID
		return err
	})
	if err != nil {
		return 0, err
	}
	return p.ProjectOfSection(ctx, sectionID)
}

// ProjectOfImage returns the project a visible image belongs to.
func (p *Planner) ProjectOfImage(ctx context.Context, imageID int64) (int64, error) {
	var projectID int64
	err := p.db.Read(ctx, func(r *store.Reader) error {
		im, err := store.FetchOne[model.ProjectImage](ctx, r, store.Criteria{ID: imageID})
		projectID = im.ProjectID
		return err
	})
	return projectID, err
}
