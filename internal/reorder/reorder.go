package reorder

import (
	"errors"
	"fmt"
	"sort"

	"sewing-planner/internal/model"
)

var ErrNotFound = errors.New("moved item not found in section")

// Result describes the order updates needed to realize an index-based move.
// Items is the section in its final order with dense Order values; Changed
// holds only the items whose Order differs from what they were given.
type Result struct {
	Items   []model.SectionItem
	Changed map[int64]int
}

// Empty reports whether the move changes nothing.
func (r Result) Empty() bool { return len(r.Changed) == 0 }

// SortItems sorts items in place by Order, then CreateDate, then ID.
func SortItems(items []model.SectionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareItems(items[i], items[j]) < 0
	})
}

func compareItems(a, b model.SectionItem) int {
	if a.Order != b.Order {
		if a.Order < b.Order {
			return -1
		}
		return 1
	}
	if a.CreateDate.Before(b.CreateDate) {
		return -1
	}
	if a.CreateDate.After(b.CreateDate) {
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// Move relocates movedID so that it ends up at targetIndex, treating the
// operation as a single in-place move: targetIndex is an index into the
// list after the moved element has been removed. The target is clamped to
// the valid range. ids is not modified.
func Move(ids []int64, movedID int64, targetIndex int) ([]int64, error) {
	from := -1
	for i, id := range ids {
		if id == movedID {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, movedID)
	}

	rest := make([]int64, 0, len(ids)-1)
	rest = append(rest, ids[:from]...)
	rest = append(rest, ids[from+1:]...)

	targetIndex = clamp(targetIndex, len(rest))

	out := make([]int64, 0, len(ids))
	out = append(out, rest[:targetIndex]...)
	out = append(out, movedID)
	out = append(out, rest[targetIndex:]...)
	return out, nil
}

// Plan computes the final arrangement of a section after moving movedID to
// targetIndex and reassigns Order densely from 0. Orders of the input are
// compared against the dense sequence, so a section that loaded with gaps or
// duplicates is repaired by the first move. A move onto its own position
// over an already dense section yields an empty change set.
func Plan(items []model.SectionItem, movedID int64, targetIndex int) (Result, error) {
	cur := append([]model.SectionItem(nil), items...)
	SortItems(cur)

	ids := make([]int64, len(cur))
	byID := make(map[int64]model.SectionItem, len(cur))
	for i, it := range cur {
		ids[i] = it.ID
		byID[it.ID] = it
	}
	moved, err := Move(ids, movedID, targetIndex)
	if err != nil {
		return Result{}, err
	}

	final := make([]model.SectionItem, 0, len(moved))
	for _, id := range moved {
		final = append(final, byID[id])
	}
	return assign(final), nil
}

// Renumber reassigns dense orders following the slice as given, for lists
// whose sequence is right but whose stored orders collide.
func Renumber(items []model.SectionItem) Result {
	return assign(append([]model.SectionItem(nil), items...))
}

func assign(final []model.SectionItem) Result {
	res := Result{Items: final, Changed: map[int64]int{}}
	for i := range final {
		if final[i].Order != i {
			res.Changed[final[i].ID] = i
			final[i].Order = i
		}
	}
	return res
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
