package project

import (
	"time"

	"sewing-planner/internal/model"
	"sewing-planner/internal/reorder"
)

// Snapshot is a detached copy of an aggregate's visible state. Two
// snapshots of the same state compare equal with reflect.DeepEqual.
type Snapshot struct {
	Project  model.Project        `json:"project" yaml:"project"`
	Sections []SectionView        `json:"sections" yaml:"sections"`
	Images   []model.ProjectImage `json:"images" yaml:"images"`
}

type SectionView struct {
	Section model.Section `json:"section" yaml:"section"`
	Items   []ItemView    `json:"items" yaml:"items"`
}

type ItemView struct {
	Item model.SectionItem      `json:"item" yaml:"item"`
	Note *model.SectionItemNote `json:"note,omitempty" yaml:"note,omitempty"`
}

// DeletedKind says what a side-list entry holds.
type DeletedKind string

const (
	DeletedSection DeletedKind = "section"
	DeletedItem    DeletedKind = "item"
	DeletedImage   DeletedKind = "image"
)

// Deleted is one entry of the per-session deleted side-list: something the
// user removed whose delete has not committed yet. Index is where it sat.
type Deleted struct {
	Token     uint64
	Kind      DeletedKind
	Index     int
	SectionID int64
	Section   *SectionView
	Item      *ItemView
	Image     *model.ProjectImage
}

// Aggregate is the in-memory state of one open project. It is not safe for
// concurrent use; one goroutine (the UI) owns it.
type Aggregate struct {
	s         Snapshot
	deleted   []Deleted
	alias     map[int64]int64
	drags     map[int64][]slot
	nextTemp  int64
	nextToken uint64
	now       func() time.Time
}

type Option func(*Aggregate)

func WithClock(now func() time.Time) Option { return func(a *Aggregate) { a.now = now } }

// Load builds an aggregate from fetched rows. Deleted rows are skipped;
// sections keep the order given and items are sorted by their order.
func Load(p model.Project, sections []model.Section, items []model.SectionItem, notes []model.SectionItemNote, images []model.ProjectImage, opts ...Option) *Aggregate {
	a := &Aggregate{
		s:        Snapshot{Project: p, Sections: []SectionView{}, Images: []model.ProjectImage{}},
		alias:    map[int64]int64{},
		drags:    map[int64][]slot{},
		nextTemp: -1,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}

	noteByItem := map[int64]model.SectionItemNote{}
	for _, n := range notes {
		if !n.IsDeleted {
			noteByItem[n.SectionItemID] = n
		}
	}
	itemsBySection := map[int64][]model.SectionItem{}
	for _, it := range items {
		if !it.IsDeleted {
			itemsBySection[it.SectionID] = append(itemsBySection[it.SectionID], it)
		}
	}
	for _, sec := range sections {
		if sec.IsDeleted || sec.ProjectID != p.ID {
			continue
		}
		its := itemsBySection[sec.ID]
		reorder.SortItems(its)
		view := SectionView{Section: sec, Items: make([]ItemView, 0, len(its))}
		for _, it := range its {
			iv := ItemView{Item: it}
			if n, ok := noteByItem[it.ID]; ok {
				iv.Note = &n
			}
			view.Items = append(view.Items, iv)
		}
		a.s.Sections = append(a.s.Sections, view)
	}
	for _, im := range images {
		if !im.IsDeleted && im.ProjectID == p.ID {
			a.s.Images = append(a.s.Images, im)
		}
	}
	return a
}

func (a *Aggregate) ProjectID() int64 { return a.s.Project.ID }

// Snapshot returns a deep copy of the visible state.
func (a *Aggregate) Snapshot() Snapshot {
	out := Snapshot{
		Project:  a.s.Project,
		Sections: make([]SectionView, 0, len(a.s.Sections)),
		Images:   append([]model.ProjectImage{}, a.s.Images...),
	}
	for _, sec := range a.s.Sections {
		out.Sections = append(out.Sections, copySection(sec))
	}
	return out
}

// Deleted returns a copy of the deleted side-list.
func (a *Aggregate) Deleted() []Deleted {
	out := make([]Deleted, 0, len(a.deleted))
	for _, d := range a.deleted {
		if d.Section != nil {
			s := copySection(*d.Section)
			d.Section = &s
		}
		if d.Item != nil {
			it := copyItem(*d.Item)
			d.Item = &it
		}
		if d.Image != nil {
			im := *d.Image
			d.Image = &im
		}
		out = append(out, d)
	}
	return out
}

// Resolve maps an id that may have been temporary to the id the aggregate
// now uses for that entity.
func (a *Aggregate) Resolve(id int64) int64 {
	if d, ok := a.alias[id]; ok {
		return d
	}
	return id
}

func copySection(sec SectionView) SectionView {
	out := SectionView{Section: sec.Section, Items: make([]ItemView, 0, len(sec.Items))}
	for _, it := range sec.Items {
		out.Items = append(out.Items, copyItem(it))
	}
	return out
}

func copyItem(it ItemView) ItemView {
	if it.Note != nil {
		n := *it.Note
		it.Note = &n
	}
	return it
}

func (a *Aggregate) tempID() int64 {
	id := a.nextTemp
	a.nextTemp--
	return id
}

func (a *Aggregate) sectionIndex(id int64) int {
	id = a.Resolve(id)
	for i := range a.s.Sections {
		if a.s.Sections[i].Section.ID == id {
			return i
		}
	}
	return -1
}

func (a *Aggregate) section(id int64) (*SectionView, error) {
	i := a.sectionIndex(id)
	if i < 0 {
		return nil, NotFoundError{Kind: "section", ID: id}
	}
	return &a.s.Sections[i], nil
}

// findItem returns the section and item index of a visible item.
func (a *Aggregate) findItem(id int64) (si, ii int, ok bool) {
	id = a.Resolve(id)
	for s := range a.s.Sections {
		for i := range a.s.Sections[s].Items {
			if a.s.Sections[s].Items[i].Item.ID == id {
				return s, i, true
			}
		}
	}
	return -1, -1, false
}

func (a *Aggregate) item(id int64) (*ItemView, error) {
	si, ii, ok := a.findItem(id)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: id}
	}
	return &a.s.Sections[si].Items[ii], nil
}

func (a *Aggregate) imageIndex(id int64) int {
	id = a.Resolve(id)
	for i := range a.s.Images {
		if a.s.Images[i].ID == id {
			return i
		}
	}
	return -1
}

func (a *Aggregate) pushDeleted(d Deleted) uint64 {
	a.nextToken++
	d.Token = a.nextToken
	a.deleted = append(a.deleted, d)
	return d.Token
}

func (a *Aggregate) popDeleted(token uint64) (Deleted, bool) {
	for i, d := range a.deleted {
		if d.Token == token {
			a.deleted = append(a.deleted[:i], a.deleted[i+1:]...)
			return d, true
		}
	}
	return Deleted{}, false
}

// bind replaces a temporary id with its durable id everywhere it appears.
func (a *Aggregate) bind(temp, durable int64) {
	if temp >= 0 || durable <= 0 || temp == durable {
		return
	}
	a.alias[temp] = durable
	swap := func(id *int64) {
		if *id == temp {
			*id = durable
		}
	}
	bindSection := func(sec *SectionView) {
		swap(&sec.Section.ID)
		for i := range sec.Items {
			it := &sec.Items[i]
			swap(&it.Item.ID)
			swap(&it.Item.SectionID)
			if it.Note != nil {
				swap(&it.Note.ID)
				swap(&it.Note.SectionItemID)
			}
		}
	}
	for i := range a.s.Sections {
		bindSection(&a.s.Sections[i])
	}
	for i := range a.s.Images {
		swap(&a.s.Images[i].ID)
	}
	for i := range a.deleted {
		d := &a.deleted[i]
		swap(&d.SectionID)
		if d.Section != nil {
			bindSection(d.Section)
		}
		if d.Item != nil {
			swap(&d.Item.Item.ID)
			swap(&d.Item.Item.SectionID)
			if d.Item.Note != nil {
				swap(&d.Item.Note.ID)
				swap(&d.Item.Note.SectionItemID)
			}
		}
		if d.Image != nil {
			swap(&d.Image.ID)
		}
	}
	for sid, origin := range a.drags {
		for i := range origin {
			swap(&origin[i].ID)
		}
		if sid == temp {
			delete(a.drags, sid)
			a.drags[durable] = origin
		}
	}
}
