package project

import (
	"context"

	"sewing-planner/internal/model"
	"sewing-planner/internal/notify"
)

// Effect is one user-visible change: applied to the aggregate at once,
// committed durably later, and either settled or reverted depending on how
// the commit went.
//
// Apply, Revert and Settle run on the goroutine that owns the aggregate.
// Commit runs on the commit worker and must not touch the aggregate; it
// records whatever Settle needs (assigned ids) in the effect itself.
type Effect interface {
	Op() notify.Op
	Apply(a *Aggregate) error
	Revert(a *Aggregate)
	Commit(ctx context.Context, p Persister, ids *IDMap) error
	Settle(a *Aggregate)
}

type renameProject struct {
	projectID  int64
	name, prev string
}

func (e *renameProject) Op() notify.Op { return notify.OpRenameProject }

func (e *renameProject) Apply(a *Aggregate) error {
	e.prev = a.s.Project.Name
	a.s.Project.Name = e.name
	return nil
}

func (e *renameProject) Revert(a *Aggregate) { a.s.Project.Name = e.prev }

func (e *renameProject) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.RenameProject(ctx, ids.Resolve(e.projectID), e.name)
}

func (e *renameProject) Settle(*Aggregate) {}

type setProjectCompleted struct {
	projectID       int64
	completed, prev bool
}

func (e *setProjectCompleted) Op() notify.Op { return notify.OpSetProjectCompleted }

func (e *setProjectCompleted) Apply(a *Aggregate) error {
	e.prev = a.s.Project.Completed
	a.s.Project.Completed = e.completed
	return nil
}

func (e *setProjectCompleted) Revert(a *Aggregate) { a.s.Project.Completed = e.prev }

func (e *setProjectCompleted) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.SetProjectCompleted(ctx, ids.Resolve(e.projectID), e.completed)
}

func (e *setProjectCompleted) Settle(*Aggregate) {}

type addSection struct {
	section model.Section
	durable int64
}

func (e *addSection) Op() notify.Op { return notify.OpAddSection }

func (e *addSection) Apply(a *Aggregate) error {
	a.s.Sections = append(a.s.Sections, SectionView{Section: e.section, Items: []ItemView{}})
	return nil
}

func (e *addSection) Revert(a *Aggregate) {
	if i := a.sectionIndex(e.section.ID); i >= 0 {
		a.s.Sections = append(a.s.Sections[:i], a.s.Sections[i+1:]...)
	}
}

func (e *addSection) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	s := e.section
	s.ID = 0
	s.ProjectID = ids.Resolve(s.ProjectID)
	id, err := p.InsertSection(ctx, s)
	if err != nil {
		return err
	}
	ids.Bind(e.section.ID, id)
	e.durable = id
	return nil
}

func (e *addSection) Settle(a *Aggregate) { a.bind(e.section.ID, e.durable) }

type renameSection struct {
	sectionID  int64
	name, prev string
}

func (e *renameSection) Op() notify.Op { return notify.OpRenameSection }

func (e *renameSection) Apply(a *Aggregate) error {
	sec, err := a.section(e.sectionID)
	if err != nil {
		return err
	}
	e.prev = sec.Section.Name
	sec.Section.Name = e.name
	return nil
}

func (e *renameSection) Revert(a *Aggregate) {
	if sec, err := a.section(e.sectionID); err == nil {
		sec.Section.Name = e.prev
	}
}

func (e *renameSection) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.RenameSection(ctx, ids.Resolve(e.sectionID), e.name)
}

func (e *renameSection) Settle(*Aggregate) {}

type deleteSection struct {
	sectionID int64
	token     uint64
}

func (e *deleteSection) Op() notify.Op { return notify.OpDeleteSection }

func (e *deleteSection) Apply(a *Aggregate) error {
	i := a.sectionIndex(e.sectionID)
	if i < 0 {
		return NotFoundError{Kind: "section", ID: e.sectionID}
	}
	sec := a.s.Sections[i]
	a.s.Sections = append(a.s.Sections[:i], a.s.Sections[i+1:]...)
	delete(a.drags, sec.Section.ID)
	sec.Section.IsDeleted = true
	e.token = a.pushDeleted(Deleted{Kind: DeletedSection, Index: i, SectionID: sec.Section.ID, Section: &sec})
	return nil
}

// Revert puts the section back at the index it was removed from.
func (e *deleteSection) Revert(a *Aggregate) {
	d, ok := a.popDeleted(e.token)
	if !ok {
		return
	}
	sec := *d.Section
	sec.Section.IsDeleted = false
	i := min(d.Index, len(a.s.Sections))
	a.s.Sections = append(a.s.Sections[:i], append([]SectionView{sec}, a.s.Sections[i:]...)...)
}

func (e *deleteSection) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.DeleteSection(ctx, ids.Resolve(e.sectionID))
}

func (e *deleteSection) Settle(a *Aggregate) { a.popDeleted(e.token) }

type addItem struct {
	item    model.SectionItem
	note    *model.SectionItemNote
	durable int64
	noteID  int64
}

func (e *addItem) Op() notify.Op { return notify.OpAddItem }

func (e *addItem) Apply(a *Aggregate) error {
	sec, err := a.section(e.item.SectionID)
	if err != nil {
		return err
	}
	iv := ItemView{Item: e.item}
	iv.Item.SectionID = sec.Section.ID
	if e.note != nil {
		n := *e.note
		iv.Note = &n
	}
	sec.Items = append(sec.Items, iv)
	return nil
}

func (e *addItem) Revert(a *Aggregate) {
	si, ii, ok := a.findItem(e.item.ID)
	if !ok {
		return
	}
	items := a.s.Sections[si].Items
	a.s.Sections[si].Items = append(items[:ii], items[ii+1:]...)
}

func (e *addItem) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	it := e.item
	it.ID = 0
	it.SectionID = ids.Resolve(it.SectionID)
	note := ""
	if e.note != nil {
		note = e.note.Text
	}
	id, noteID, err := p.InsertItem(ctx, it, note)
	if err != nil {
		return err
	}
	ids.Bind(e.item.ID, id)
	e.durable = id
	if e.note != nil {
		ids.Bind(e.note.ID, noteID)
		e.noteID = noteID
	}
	return nil
}

func (e *addItem) Settle(a *Aggregate) {
	a.bind(e.item.ID, e.durable)
	if e.note != nil {
		a.bind(e.note.ID, e.noteID)
	}
}

type updateItemText struct {
	itemID     int64
	text, prev string
}

func (e *updateItemText) Op() notify.Op { return notify.OpUpdateItemText }

func (e *updateItemText) Apply(a *Aggregate) error {
	it, err := a.item(e.itemID)
	if err != nil {
		return err
	}
	e.prev = it.Item.Text
	it.Item.Text = e.text
	return nil
}

func (e *updateItemText) Revert(a *Aggregate) {
	if it, err := a.item(e.itemID); err == nil {
		it.Item.Text = e.prev
	}
}

func (e *updateItemText) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.UpdateItemText(ctx, ids.Resolve(e.itemID), e.text)
}

func (e *updateItemText) Settle(*Aggregate) {}

type setItemComplete struct {
	itemID         int64
	complete, prev bool
}

func (e *setItemComplete) Op() notify.Op { return notify.OpUpdateItemCompletion }

func (e *setItemComplete) Apply(a *Aggregate) error {
	it, err := a.item(e.itemID)
	if err != nil {
		return err
	}
	e.prev = it.Item.IsComplete
	it.Item.IsComplete = e.complete
	return nil
}

func (e *setItemComplete) Revert(a *Aggregate) {
	if it, err := a.item(e.itemID); err == nil {
		it.Item.IsComplete = e.prev
	}
}

func (e *setItemComplete) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.SetItemComplete(ctx, ids.Resolve(e.itemID), e.complete)
}

func (e *setItemComplete) Settle(*Aggregate) {}

type deleteItems struct {
	itemIDs []int64
	tokens  []uint64
}

func (e *deleteItems) Op() notify.Op { return notify.OpDeleteSectionItems }

func (e *deleteItems) Apply(a *Aggregate) error {
	for _, id := range e.itemIDs {
		if _, _, ok := a.findItem(id); !ok {
			return NotFoundError{Kind: "item", ID: id}
		}
	}
	e.tokens = e.tokens[:0]
	for _, id := range e.itemIDs {
		si, ii, _ := a.findItem(id)
		sec := &a.s.Sections[si]
		it := sec.Items[ii]
		sec.Items = append(sec.Items[:ii], sec.Items[ii+1:]...)
		it.Item.IsDeleted = true
		e.tokens = append(e.tokens, a.pushDeleted(Deleted{
			Kind:      DeletedItem,
			Index:     ii,
			SectionID: sec.Section.ID,
			Item:      &it,
		}))
	}
	return nil
}

// Revert reinserts items in reverse removal order so each lands on the
// index it was removed from.
func (e *deleteItems) Revert(a *Aggregate) {
	for i := len(e.tokens) - 1; i >= 0; i-- {
		d, ok := a.popDeleted(e.tokens[i])
		if !ok {
			continue
		}
		sec, err := a.section(d.SectionID)
		if err != nil {
			continue
		}
		it := *d.Item
		it.Item.IsDeleted = false
		at := min(d.Index, len(sec.Items))
		sec.Items = append(sec.Items[:at], append([]ItemView{it}, sec.Items[at:]...)...)
	}
	e.tokens = nil
}

func (e *deleteItems) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.DeleteItems(ctx, ids.resolveAll(e.itemIDs))
}

func (e *deleteItems) Settle(a *Aggregate) {
	for _, t := range e.tokens {
		a.popDeleted(t)
	}
	e.tokens = nil
}

type reorderItems struct {
	sectionID     int64
	before, after []slot
	changed       map[int64]int
}

func (e *reorderItems) Op() notify.Op { return notify.OpReorderItems }

func (e *reorderItems) Apply(a *Aggregate) error {
	sec, err := a.section(e.sectionID)
	if err != nil {
		return err
	}
	a.arrange(sec, e.after)
	return nil
}

func (e *reorderItems) Revert(a *Aggregate) {
	if sec, err := a.section(e.sectionID); err == nil {
		a.arrange(sec, e.before)
	}
}

// Commit writes every changed order of the section in one transaction.
func (e *reorderItems) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	orders := make(map[int64]int, len(e.changed))
	for id, o := range e.changed {
		orders[ids.Resolve(id)] = o
	}
	return p.SaveItemOrder(ctx, ids.Resolve(e.sectionID), orders)
}

func (e *reorderItems) Settle(*Aggregate) {}

type importImage struct {
	image  model.ProjectImage
	data   []byte
	name   string
	stored model.ProjectImage
}

func (e *importImage) Op() notify.Op { return notify.OpImportImage }

func (e *importImage) Apply(a *Aggregate) error {
	a.s.Images = append(a.s.Images, e.image)
	return nil
}

func (e *importImage) Revert(a *Aggregate) {
	if i := a.imageIndex(e.image.ID); i >= 0 {
		a.s.Images = append(a.s.Images[:i], a.s.Images[i+1:]...)
	}
}

func (e *importImage) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	im, err := p.ImportImage(ctx, ids.Resolve(e.image.ProjectID), e.data, e.name)
	if err != nil {
		return err
	}
	ids.Bind(e.image.ID, im.ID)
	e.stored = im
	e.data = nil
	return nil
}

// Settle swaps the placeholder for the stored row.
func (e *importImage) Settle(a *Aggregate) {
	a.bind(e.image.ID, e.stored.ID)
	if i := a.imageIndex(e.stored.ID); i >= 0 {
		a.s.Images[i] = e.stored
	}
}

type deleteImages struct {
	imageIDs []int64
	tokens   []uint64
}

func (e *deleteImages) Op() notify.Op { return notify.OpDeleteImages }

func (e *deleteImages) Apply(a *Aggregate) error {
	for _, id := range e.imageIDs {
		if a.imageIndex(id) < 0 {
			return NotFoundError{Kind: "image", ID: id}
		}
	}
	e.tokens = e.tokens[:0]
	for _, id := range e.imageIDs {
		i := a.imageIndex(id)
		im := a.s.Images[i]
		a.s.Images = append(a.s.Images[:i], a.s.Images[i+1:]...)
		im.IsDeleted = true
		e.tokens = append(e.tokens, a.pushDeleted(Deleted{Kind: DeletedImage, Index: i, Image: &im}))
	}
	return nil
}

func (e *deleteImages) Revert(a *Aggregate) {
	for i := len(e.tokens) - 1; i >= 0; i-- {
		d, ok := a.popDeleted(e.tokens[i])
		if !ok {
			continue
		}
		im := *d.Image
		im.IsDeleted = false
		at := min(d.Index, len(a.s.Images))
		a.s.Images = append(a.s.Images[:at], append([]model.ProjectImage{im}, a.s.Images[at:]...)...)
	}
	e.tokens = nil
}

func (e *deleteImages) Commit(ctx context.Context, p Persister, ids *IDMap) error {
	return p.DeleteImages(ctx, ids.resolveAll(e.imageIDs))
}

func (e *deleteImages) Settle(a *Aggregate) {
	for _, t := range e.tokens {
		a.popDeleted(t)
	}
	e.tokens = nil
}
