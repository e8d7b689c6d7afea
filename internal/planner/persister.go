package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"sewing-planner/internal/imagestore"
	"sewing-planner/internal/model"
	"sewing-planner/internal/store"
)

// persister commits effects to the database and image directory. Every
// method runs in a single write transaction.
type persister struct {
	db     *store.DB
	images *imagestore.Store
	log    zerolog.Logger
}

// modify loads the live row id, lets fn change it and writes it back.
func modify[T store.Entity](ctx context.Context, w *store.Writer, id int64, fn func(*T)) error {
	rec, err := store.FetchOne[T](ctx, w.Reader, store.Criteria{ID: id})
	if err != nil {
		return err
	}
	fn(&rec)
	return store.Update(ctx, w, &rec)
}

// softDelete treats rows that never existed as already gone.
func softDelete[T store.Entity](ctx context.Context, w *store.Writer, id int64) error {
	if err := store.SoftDelete[T](ctx, w, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (p *persister) RenameProject(ctx context.Context, projectID int64, name string) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		return modify(ctx, w, projectID, func(pr *model.Project) { pr.Name = name })
	})
}

func (p *persister) SetProjectCompleted(ctx context.Context, projectID int64, completed bool) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		return modify(ctx, w, projectID, func(pr *model.Project) { pr.Completed = completed })
	})
}

func (p *persister) InsertSection(ctx context.Context, s model.Section) (int64, error) {
	var id int64
	err := p.db.Write(ctx, func(w *store.Writer) error {
		var err error
		id, err = store.Insert(ctx, w, &s)
		return err
	})
	return id, err
}

func (p *persister) RenameSection(ctx context.Context, sectionID int64, name string) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		return modify(ctx, w, sectionID, func(s *model.Section) { s.Name = name })
	})
}

func (p *persister) DeleteSection(ctx context.Context, sectionID int64) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		items, err := store.FetchAll[model.SectionItem](ctx, w.Reader, store.Criteria{ParentID: sectionID})
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := softDelete[model.SectionItem](ctx, w, it.ID); err != nil {
				return err
			}
		}
		return softDelete[model.Section](ctx, w, sectionID)
	})
}

func (p *persister) InsertItem(ctx context.Context, it model.SectionItem, note string) (itemID, noteID int64, err error) {
	err = p.db.Write(ctx, func(w *store.Writer) error {
		var err error
		if itemID, err = store.Insert(ctx, w, &it); err != nil {
			return err
		}
		if strings.TrimSpace(note) == "" {
			return nil
		}
		noteID, err = store.Insert(ctx, w, &model.SectionItemNote{SectionItemID: itemID, Text: note})
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return itemID, noteID, nil
}

func (p *persister) UpdateItemText(ctx context.Context, itemID int64, text string) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		return modify(ctx, w, itemID, func(it *model.SectionItem) { it.Text = text })
	})
}

func (p *persister) SetItemComplete(ctx context.Context, itemID int64, complete bool) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		return modify(ctx, w, itemID, func(it *model.SectionItem) { it.IsComplete = complete })
	})
}

func (p *persister) DeleteItems(ctx context.Context, itemIDs []int64) error {
	return p.db.Write(ctx, func(w *store.Writer) error {
		for _, id := range itemIDs {
			if err := softDelete[model.SectionItem](ctx, w, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveItemOrder writes every order in one transaction, so a section is
// never left half reordered.
func (p *persister) SaveItemOrder(ctx context.Context, sectionID int64, orders map[int64]int) error {
	ids := make([]int64, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return p.db.Write(ctx, func(w *store.Writer) error {
		for _, id := range ids {
			it, err := store.FetchOne[model.SectionItem](ctx, w.Reader, store.Criteria{ID: id})
			if err != nil {
				return err
			}
			if it.SectionID != sectionID {
				return fmt.Errorf("item %d is not in section %d", id, sectionID)
			}
			it.Order = orders[id]
			if err := store.Update(ctx, w, &it); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportImage writes the file first and then its row. A file whose row
// could not be written is removed again.
func (p *persister) ImportImage(ctx context.Context, projectID int64, data []byte, suggestedName string) (model.ProjectImage, error) {
	rel, err := p.images.WriteImage(projectID, data, imagestore.DerivedFileName(suggestedName))
	if err != nil {
		return model.ProjectImage{}, err
	}
	im := model.ProjectImage{ProjectID: projectID, FilePath: rel}
	err = p.db.Write(ctx, func(w *store.Writer) error {
		_, err := store.Insert(ctx, w, &im)
		return err
	})
	if err != nil {
		if derr := p.images.DeleteImage(rel); derr != nil {
			p.log.Warn().Err(derr).Str("path", rel).Msg("orphaned image file")
		}
		return model.ProjectImage{}, err
	}
	return im, nil
}

// DeleteImages soft-deletes the rows in one transaction and removes the
// files after it commits. A file that cannot be removed is logged and left
// behind; no live row ever points at a missing file.
func (p *persister) DeleteImages(ctx context.Context, imageIDs []int64) error {
	var paths []string
	err := p.db.Write(ctx, func(w *store.Writer) error {
		paths = paths[:0]
		for _, id := range imageIDs {
			im, err := store.FetchOne[model.ProjectImage](ctx, w.Reader, store.Criteria{ID: id})
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := store.SoftDelete[model.ProjectImage](ctx, w, id); err != nil {
				return err
			}
			paths = append(paths, im.FilePath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, path := range paths {
		if derr := p.images.DeleteImage(path); derr != nil {
			p.log.Warn().Err(derr).Str("path", path).Msg("orphaned image file")
		}
	}
	return nil
}
