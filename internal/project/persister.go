package project

import (
	"context"
	"sync"

	"sewing-planner/internal/model"
)

// Persister is the durable-write surface effects commit through. Every
// method is one write transaction. Ids passed in are always durable.
type Persister interface {
	RenameProject(ctx context.Context, projectID int64, name string) error
	SetProjectCompleted(ctx context.Context, projectID int64, completed bool) error

	InsertSection(ctx context.Context, s model.Section) (int64, error)
	RenameSection(ctx context.Context, sectionID int64, name string) error
	// DeleteSection soft-deletes the section and its items.
	DeleteSection(ctx context.Context, sectionID int64) error

	// InsertItem inserts the item and, when note is non-empty, its note.
	// noteID is zero when no note was written.
	InsertItem(ctx context.Context, it model.SectionItem, note string) (itemID, noteID int64, err error)
	UpdateItemText(ctx context.Context, itemID int64, text string) error
	SetItemComplete(ctx context.Context, itemID int64, complete bool) error
	DeleteItems(ctx context.Context, itemIDs []int64) error
	SaveItemOrder(ctx context.Context, sectionID int64, orders map[int64]int) error

	ImportImage(ctx context.Context, projectID int64, data []byte, suggestedName string) (model.ProjectImage, error)
	DeleteImages(ctx context.Context, imageIDs []int64) error
}

// IDMap translates temporary ids to the durable ids assigned when their
// inserts commit. The commit worker owns it: effects queued behind an
// insert resolve their references through it before writing.
type IDMap struct {
	mu sync.Mutex
	m  map[int64]int64
}

func NewIDMap() *IDMap { return &IDMap{m: map[int64]int64{}} }

// Resolve returns the durable id for id, or id itself when none is bound.
func (m *IDMap) Resolve(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.m[id]; ok {
		return d
	}
	return id
}

func (m *IDMap) Bind(temp, durable int64) {
	if temp >= 0 || durable <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = map[int64]int64{}
	}
	m.m[temp] = durable
}

func (m *IDMap) resolveAll(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = m.Resolve(id)
	}
	return out
}

// IsTemp reports whether id was allocated in memory and has not been persisted.
func IsTemp(id int64) bool { return id < 0 }
