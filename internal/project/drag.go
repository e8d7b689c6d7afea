package project

import (
	"sewing-planner/internal/model"
	"sewing-planner/internal/reorder"
)

// slot is one item's position in an arrangement.
type slot struct {
	ID    int64
	Order int
}

func slotsOf(items []ItemView) []slot {
	out := make([]slot, len(items))
	for i, it := range items {
		out[i] = slot{ID: it.Item.ID, Order: it.Item.Order}
	}
	return out
}

func slotsOfItems(items []model.SectionItem) []slot {
	out := make([]slot, len(items))
	for i, it := range items {
		out[i] = slot{ID: it.ID, Order: it.Order}
	}
	return out
}

// arrange puts the section's items in slot order with the slot orders.
// Items the slots don't mention keep their relative order at the end;
// slots for items no longer visible are skipped.
func (a *Aggregate) arrange(sec *SectionView, slots []slot) {
	byID := make(map[int64]ItemView, len(sec.Items))
	for _, it := range sec.Items {
		byID[it.Item.ID] = it
	}
	placed := make(map[int64]bool, len(slots))
	out := make([]ItemView, 0, len(sec.Items))
	for _, s := range slots {
		id := a.Resolve(s.ID)
		it, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		it.Item.Order = s.Order
		out = append(out, it)
		placed[id] = true
	}
	for _, it := range sec.Items {
		if !placed[it.Item.ID] {
			out = append(out, it)
		}
	}
	sec.Items = out
}

// DragEnter moves an item in memory only, as a drag passes over positions.
// The arrangement before the first enter is remembered for Drop and
// CancelDrag.
func (a *Aggregate) DragEnter(sectionID, movedID int64, targetIndex int) error {
	sec, err := a.section(sectionID)
	if err != nil {
		return err
	}
	plan, err := reorder.Plan(itemsOf(sec), a.Resolve(movedID), targetIndex)
	if err != nil {
		return NotFoundError{Kind: "item", ID: movedID}
	}
	if _, ok := a.drags[sec.Section.ID]; !ok {
		a.drags[sec.Section.ID] = slotsOf(sec.Items)
	}
	a.arrange(sec, slotsOfItems(plan.Items))
	return nil
}

// Dragging reports whether a drag is in progress in the section.
func (a *Aggregate) Dragging(sectionID int64) bool {
	_, ok := a.drags[a.Resolve(sectionID)]
	return ok
}

// Drop ends a drag and returns the effect that persists the arrangement the
// drag produced. Dropping back where the drag started yields no effect.
func (a *Aggregate) Drop(sectionID int64) (Effect, error) {
	sec, err := a.section(sectionID)
	if err != nil {
		return nil, err
	}
	origin, ok := a.drags[sec.Section.ID]
	if !ok {
		return nil, nil
	}
	delete(a.drags, sec.Section.ID)

	before := map[int64]int{}
	for _, s := range origin {
		before[a.Resolve(s.ID)] = s.Order
	}
	after := slotsOf(sec.Items)
	changed := map[int64]int{}
	for _, s := range after {
		if o, ok := before[s.ID]; !ok || o != s.Order {
			changed[s.ID] = s.Order
		}
	}
	if len(changed) == 0 {
		a.arrange(sec, origin)
		return nil, nil
	}
	return &reorderItems{sectionID: sec.Section.ID, before: origin, after: after, changed: changed}, nil
}

// CancelDrag restores the arrangement from before the drag.
func (a *Aggregate) CancelDrag(sectionID int64) {
	sec, err := a.section(sectionID)
	if err != nil {
		return
	}
	origin, ok := a.drags[sec.Section.ID]
	if !ok {
		return
	}
	delete(a.drags, sec.Section.ID)
	a.arrange(sec, origin)
}
