package store

import (
	"database/sql/driver"
	"fmt"
	"time"

	"sewing-planner/internal/model"
)

// Entity is the set of row types the storage engine knows how to map.
type Entity interface {
	model.Project | model.Section | model.SectionItem | model.SectionItemNote | model.ProjectImage
}

// table maps one entity type onto its table. fields returns pointers to the
// entity's own columns (everything except the shared Record columns), in the
// same order as columns.
type table[T Entity] struct {
	name      string
	parentCol string
	parent    string
	orderBy   string
	columns   []string
	fields    func(*T) []any
	record    func(*T) *model.Record
}

var projectTable = table[model.Project]{
	name:    "project",
	orderBy: "id",
	columns: []string{"name", "completed"},
	fields: func(p *model.Project) []any {
		return []any{&p.Name, &p.Completed}
	},
	record: func(p *model.Project) *model.Record { return p.Meta() },
}

var sectionTable = table[model.Section]{
	name:      "section",
	parentCol: "projectId",
	parent:    "project",
	orderBy:   "id",
	columns:   []string{"projectId", "name"},
	fields: func(s *model.Section) []any {
		return []any{&s.ProjectID, &s.Name}
	},
	record: func(s *model.Section) *model.Record { return s.Meta() },
}

var sectionItemTable = table[model.SectionItem]{
	name:      "sectionItem",
	parentCol: "sectionId",
	parent:    "section",
	orderBy:   `"order", createDate, id`,
	columns:   []string{"sectionId", "text", "isComplete", `"order"`},
	fields: func(it *model.SectionItem) []any {
		return []any{&it.SectionID, &it.Text, &it.IsComplete, &it.Order}
	},
	record: func(it *model.SectionItem) *model.Record { return it.Meta() },
}

var sectionItemNoteTable = table[model.SectionItemNote]{
	name:      "sectionItemNote",
	parentCol: "sectionItemId",
	parent:    "sectionItem",
	orderBy:   "id",
	columns:   []string{"sectionItemId", "text"},
	fields: func(n *model.SectionItemNote) []any {
		return []any{&n.SectionItemID, &n.Text}
	},
	record: func(n *model.SectionItemNote) *model.Record { return n.Meta() },
}

var projectImageTable = table[model.ProjectImage]{
	name:      "projectImage",
	parentCol: "projectId",
	parent:    "project",
	orderBy:   "createDate, id",
	columns:   []string{"projectId", "filePath"},
	fields: func(im *model.ProjectImage) []any {
		return []any{&im.ProjectID, &im.FilePath}
	},
	record: func(im *model.ProjectImage) *model.Record { return im.Meta() },
}

func tableFor[T Entity]() *table[T] {
	var zero T
	var t any
	switch any(zero).(type) {
	case model.Project:
		t = &projectTable
	case model.Section:
		t = &sectionTable
	case model.SectionItem:
		t = &sectionItemTable
	case model.SectionItemNote:
		t = &sectionItemNoteTable
	case model.ProjectImage:
		t = &projectImageTable
	default:
		panic(fmt.Sprintf("store: no table for %T", zero))
	}
	return t.(*table[T])
}

// TableName returns the table an entity type is stored in.
func TableName[T Entity]() string { return tableFor[T]().name }

// scanTargets returns destinations for "id, isDeleted, createDate, updateDate, <columns>".
func (t *table[T]) scanTargets(rec *T) []any {
	r := t.record(rec)
	out := []any{&r.ID, &r.IsDeleted, millis{&r.CreateDate}, millis{&r.UpdateDate}}
	return append(out, t.fields(rec)...)
}

func (t *table[T]) selectColumns() string {
	cols := "id, isDeleted, createDate, updateDate"
	for _, c := range t.columns {
		cols += ", " + c
	}
	return cols
}

// millis stores a time.Time as unix milliseconds.
type millis struct{ t *time.Time }

func (m millis) Value() (driver.Value, error) {
	if m.t == nil || m.t.IsZero() {
		return int64(0), nil
	}
	return m.t.UTC().UnixMilli(), nil
}

func (m millis) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		if v == 0 {
			*m.t = time.Time{}
			return nil
		}
		*m.t = time.UnixMilli(v).UTC()
		return nil
	case nil:
		*m.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("store: cannot scan %T into timestamp", src)
	}
}
