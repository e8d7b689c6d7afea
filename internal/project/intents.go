package project

import (
	"fmt"
	"strings"

	"sewing-planner/internal/model"
	"sewing-planner/internal/reorder"
)

// Intents validate against the current state and describe a change as an
// Effect. They never mutate the aggregate; applying the effect does. A nil
// effect with a nil error means there is nothing to do.

func (a *Aggregate) RenameProject(name string) (Effect, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "Project name can't be empty."}
	}
	if name == a.s.Project.Name {
		return nil, nil
	}
	return &renameProject{projectID: a.s.Project.ID, name: name}, nil
}

func (a *Aggregate) SetProjectCompleted(completed bool) (Effect, error) {
	if a.s.Project.Completed == completed {
		return nil, nil
	}
	return &setProjectCompleted{projectID: a.s.Project.ID, completed: completed}, nil
}

// AddSection adds a section named "Section N", N being the new section count.
func (a *Aggregate) AddSection() Effect {
	now := a.now()
	return &addSection{section: model.Section{
		Record:    model.Record{ID: a.tempID(), CreateDate: now, UpdateDate: now},
		ProjectID: a.s.Project.ID,
		Name:      fmt.Sprintf("Section %d", len(a.s.Sections)+1),
	}}
}

func (a *Aggregate) RenameSection(sectionID int64, name string) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "Section name can't be empty."}
	}
	if name == sec.Section.Name {
		return nil, nil
	}
	return &renameSection{sectionID: sec.Section.ID, name: name}, nil
}

func (a *Aggregate) DeleteSection(sectionID int64) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	return &deleteSection{sectionID: sec.Section.ID}, nil
}

// AddItem appends an item after the section's current last item. A
// non-blank note is created with it.
func (a *Aggregate) AddItem(sectionID int64, text, note string) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Message: "Item text can't be empty."}
	}
	order := 0
	for _, it := range sec.Items {
		if it.Item.Order >= order {
			order = it.Item.Order + 1
		}
	}

	now := a.now()
	e := &addItem{item: model.SectionItem{
		Record:    model.Record{ID: a.tempID(), CreateDate: now, UpdateDate: now},
		SectionID: sec.Section.ID,
		Text:      text,
		Order:     order,
	}}
	if note = strings.TrimSpace(note); note != "" {
		e.note = &model.SectionItemNote{
			Record:        model.Record{ID: a.tempID(), CreateDate: now, UpdateDate: now},
			SectionItemID: e.item.ID,
			Text:          note,
		}
	}
	return e, nil
}

// UpdateItemText resubmitting the current text is a no-op, not an error.
func (a *Aggregate) UpdateItemText(itemID int64, text string) (Effect, error) {
	it, err := a.item(itemID)
	if err != nil {
		return nil, err
	}
	if text == it.Item.Text {
		return nil, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Message: "Item text can't be empty."}
	}
	if text == it.Item.Text {
		return nil, nil
	}
	return &updateItemText{itemID: it.Item.ID, text: text}, nil
}

func (a *Aggregate) ToggleItemComplete(itemID int64) (Effect, error) {
	it, err := a.item(itemID)
	if err != nil {
		return nil, err
	}
	return &setItemComplete{itemID: it.Item.ID, complete: !it.Item.IsComplete}, nil
}

func (a *Aggregate) DeleteItem(itemID int64) (Effect, error) { return a.DeleteItems(itemID) }

// DeleteItems removes several items, possibly from different sections, as
// one effect.
func (a *Aggregate) DeleteItems(itemIDs ...int64) (Effect, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, id := range itemIDs {
		it, err := a.item(id)
		if err != nil {
			return nil, err
		}
		if !seen[it.Item.ID] {
			seen[it.Item.ID] = true
			ids = append(ids, it.Item.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &deleteItems{itemIDs: ids}, nil
}

// ReorderItems moves an item to targetIndex within its section. The index
// counts positions in the list without the moved item.
func (a *Aggregate) ReorderItems(sectionID, movedID int64, targetIndex int) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	plan, err := reorder.Plan(itemsOf(sec), a.Resolve(movedID), targetIndex)
	if err != nil {
		return nil, NotFoundError{Kind: "item", ID: movedID}
	}
	if plan.Empty() {
		return nil, nil
	}
	return &reorderItems{
		sectionID: sec.Section.ID,
		before:    slotsOf(sec.Items),
		after:     slotsOfItems(plan.Items),
		changed:   plan.Changed,
	}, nil
}

// NormalizeOrders returns an effect that rewrites a section's orders densely,
// keeping the items in the sequence shown, when two visible items share an
// order or are out of sequence. It returns nil when nothing needs fixing.
func (a *Aggregate) NormalizeOrders(sectionID int64) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	strict := true
	for i := 1; i < len(sec.Items); i++ {
		if sec.Items[i-1].Item.Order >= sec.Items[i].Item.Order {
			strict = false
			break
		}
	}
	if strict {
		return nil, nil
	}
	plan := reorder.Renumber(itemsOf(sec))
	return &reorderItems{
		sectionID: sec.Section.ID,
		before:    slotsOf(sec.Items),
		after:     slotsOfItems(plan.Items),
		changed:   plan.Changed,
	}, nil
}

func (a *Aggregate) ImportImage(data []byte, suggestedName string) (Effect, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Field: "image", Message: "The image is empty."}
	}
	now := a.now()
	return &importImage{
		image: model.ProjectImage{
			Record:    model.Record{ID: a.tempID(), CreateDate: now, UpdateDate: now},
			ProjectID: a.s.Project.ID,
		},
		data: data,
		name: suggestedName,
	}, nil
}

func (a *Aggregate) DeleteImages(imageIDs ...int64) (Effect, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, id := range imageIDs {
		i := a.imageIndex(id)
		if i < 0 {
			return nil, NotFoundError{Kind: "image", ID: id}
		}
		id = a.s.Images[i].ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &deleteImages{imageIDs: ids}, nil
}

func itemsOf(sec *SectionView) []model.SectionItem {
	out := make([]model.SectionItem, len(sec.Items))
	for i, it := range sec.Items {
		out[i] = it.Item
	}
	return out
}
