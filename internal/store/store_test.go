package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sewing-planner/internal/model"
)

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "planner.sqlite"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertProject(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.Write(context.Background(), func(w *Writer) error {
		var err error
		id, err = Insert(context.Background(), w, &model.Project{Name: name})
		return err
	})
	require.NoError(t, err)
	return id
}

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := openTestDB(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	p := model.Project{Name: "Linen shirt"}
	err := db.Write(ctx, func(w *Writer) error {
		_, err := Insert(ctx, w, &p)
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, p.ID)
	assert.Equal(t, now, p.CreateDate)
	assert.Equal(t, now, p.UpdateDate)

	var got model.Project
	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		var err error
		got, err = FetchOne[model.Project](ctx, r, Criteria{ID: p.ID})
		return err
	}))
	assert.Equal(t, p, got)
}

func TestUpdateRefreshesUpdateDateOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	db := openTestDB(t, WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	id := insertProject(t, db, "Tote bag")
	later := now.Add(time.Hour)
	clock = func() time.Time { return later }

	require.NoError(t, db.Write(ctx, func(w *Writer) error {
		p, err := FetchOne[model.Project](ctx, w.Reader, Criteria{ID: id})
		if err != nil {
			return err
		}
		p.Name = "Lined tote bag"
		p.CreateDate = later // ignored
		return Update(ctx, w, &p)
	}))

	var got model.Project
	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		var err error
		got, err = FetchOne[model.Project](ctx, r, Criteria{ID: id})
		return err
	}))
	assert.Equal(t, "Lined tote bag", got.Name)
	assert.Equal(t, now, got.CreateDate)
	assert.Equal(t, later, got.UpdateDate)
}

func TestUpdateMissingOrDeletedIsNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := insertProject(t, db, "Apron")

	err := db.Write(ctx, func(w *Writer) error {
		return Update(ctx, w, &model.Project{Record: model.Record{ID: 999}, Name: "x"})
	})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Write(ctx, func(w *Writer) error { return SoftDelete[model.Project](ctx, w, id) }))
	err = db.Write(ctx, func(w *Writer) error {
		return Update(ctx, w, &model.Project{Record: model.Record{ID: id}, Name: "x"})
	})
	require.ErrorIs(t, err, ErrNotFound)
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, "project", se.Table)
}

func TestSoftDeleteHidesRowButKeepsIt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := insertProject(t, db, "Quilt")

	var sid int64
	require.NoError(t, db.Write(ctx, func(w *Writer) error {
		var err error
		sid, err = Insert(ctx, w, &model.Section{ProjectID: pid, Name: "Fabric"})
		return err
	}))
	require.NoError(t, db.Write(ctx, func(w *Writer) error { return SoftDelete[model.Section](ctx, w, sid) }))
	// Idempotent.
	require.NoError(t, db.Write(ctx, func(w *Writer) error { return SoftDelete[model.Section](ctx, w, sid) }))

	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		visible, err := FetchAll[model.Section](ctx, r, Criteria{ParentID: pid})
		require.NoError(t, err)
		assert.Empty(t, visible)

		all, err := FetchAll[model.Section](ctx, r, Criteria{ParentID: pid, IncludeDeleted: true})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].IsDeleted)

		_, err = FetchOne[model.Section](ctx, r, Criteria{ID: sid})
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))

	err := db.Write(ctx, func(w *Writer) error { return SoftDelete[model.Section](ctx, w, 12345) })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertRequiresLiveParent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := insertProject(t, db, "Skirt")

	err := db.Write(ctx, func(w *Writer) error {
		_, err := Insert(ctx, w, &model.Section{ProjectID: 777, Name: "Ghost"})
		return err
	})
	require.ErrorIs(t, err, ErrParentNotFound)

	require.NoError(t, db.Write(ctx, func(w *Writer) error { return SoftDelete[model.Project](ctx, w, pid) }))
	err = db.Write(ctx, func(w *Writer) error {
		_, err := Insert(ctx, w, &model.Section{ProjectID: pid, Name: "Late"})
		return err
	})
	require.ErrorIs(t, err, ErrParentNotFound)
}

func TestInsertRequiresFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	err := db.Write(ctx, func(w *Writer) error {
		_, err := Insert(ctx, w, &model.Project{})
		return err
	})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "Name")
}

func TestSecondNoteForItemIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := insertProject(t, db, "Coat")

	var itemID int64
	require.NoError(t, db.Write(ctx, func(w *Writer) error {
		sid, err := Insert(ctx, w, &model.Section{ProjectID: pid, Name: "Lining"})
		if err != nil {
			return err
		}
		itemID, err = Insert(ctx, w, &model.SectionItem{SectionID: sid, Text: "Buy thread"})
		if err != nil {
			return err
		}
		_, err = Insert(ctx, w, &model.SectionItemNote{SectionItemID: itemID, Text: "get matching color"})
		return err
	}))

	err := db.Write(ctx, func(w *Writer) error {
		_, err := Insert(ctx, w, &model.SectionItemNote{SectionItemID: itemID, Text: "second"})
		return err
	})
	require.ErrorIs(t, err, ErrUniqueViolation)

	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		notes, err := FetchAll[model.SectionItemNote](ctx, r, Criteria{ParentID: itemID})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "get matching color", notes[0].Text)
		return nil
	}))
}

func TestWriteRollsBackAndReturnsBodyError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Write(ctx, func(w *Writer) error {
		if _, err := Insert(ctx, w, &model.Project{Name: "Never"}); err != nil {
			return err
		}
		return boom
	})
	require.Same(t, boom, err)

	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		all, err := FetchAll[model.Project](ctx, r, Criteria{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	}))
}

func TestItemsFetchInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := insertProject(t, db, "Dress")

	var sid int64
	require.NoError(t, db.Write(ctx, func(w *Writer) error {
		var err error
		sid, err = Insert(ctx, w, &model.Section{ProjectID: pid, Name: "Steps"})
		if err != nil {
			return err
		}
		for i, text := range []string{"third", "first", "second"} {
			order := []int{2, 0, 1}[i]
			if _, err := Insert(ctx, w, &model.SectionItem{SectionID: sid, Text: text, Order: order}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		items, err := FetchAll[model.SectionItem](ctx, r, Criteria{ParentID: sid})
		require.NoError(t, err)
		var texts []string
		for _, it := range items {
			texts = append(texts, it.Text)
		}
		assert.Equal(t, []string{"first", "second", "third"}, texts)
		return nil
	}))
}

func TestFetchAllAcrossParents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := insertProject(t, db, "Coat")

	var cutting, lining, other, gone int64
	require.NoError(t, db.Write(ctx, func(w *Writer) error {
		ids := make([]int64, 3)
		for i, name := range []string{"Cutting", "Lining", "Other"} {
			id, err := Insert(ctx, w, &model.Section{ProjectID: pid, Name: name})
			if err != nil {
				return err
			}
			ids[i] = id
		}
		cutting, lining, other = ids[0], ids[1], ids[2]
		for _, it := range []model.SectionItem{
			{SectionID: cutting, Text: "Trace pattern"},
			{SectionID: lining, Text: "Cut lining"},
			{SectionID: other, Text: "Buy buttons"},
		} {
			if _, err := Insert(ctx, w, &it); err != nil {
				return err
			}
		}
		var err error
		if gone, err = Insert(ctx, w, &model.SectionItem{SectionID: lining, Text: "Old step", Order: 1}); err != nil {
			return err
		}
		return SoftDelete[model.SectionItem](ctx, w, gone)
	}))

	require.NoError(t, db.Read(ctx, func(r *Reader) error {
		items, err := FetchAll[model.SectionItem](ctx, r, Criteria{ParentIDs: []int64{cutting, lining}})
		require.NoError(t, err)
		var texts []string
		for _, it := range items {
			texts = append(texts, it.Text)
		}
		assert.ElementsMatch(t, []string{"Trace pattern", "Cut lining"}, texts)

		_, err = FetchAll[model.Project](ctx, r, Criteria{ParentIDs: []int64{pid}})
		assert.Error(t, err, "projects have no parent column")
		return nil
	}))
}

func TestReaderCannotWrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	err := db.Read(ctx, func(r *Reader) error {
		_, err := r.q.ExecContext(ctx, `INSERT INTO project(name, completed, isDeleted, createDate, updateDate) VALUES('x', 0, 0, 0, 0)`)
		return err
	})
	require.Error(t, err)
}
