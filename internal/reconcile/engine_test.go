package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sewing-planner/internal/model"
	"sewing-planner/internal/notify"
	"sewing-planner/internal/project"
)

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) RenameProject(ctx context.Context, id int64, name string) error {
	return m.Called(id, name).Error(0)
}

func (m *mockPersister) SetProjectCompleted(ctx context.Context, id int64, completed bool) error {
	return m.Called(id, completed).Error(0)
}

func (m *mockPersister) InsertSection(ctx context.Context, s model.Section) (int64, error) {
	args := m.Called(s)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPersister) RenameSection(ctx context.Context, id int64, name string) error {
	return m.Called(id, name).Error(0)
}

func (m *mockPersister) DeleteSection(ctx context.Context, id int64) error {
	return m.Called(id).Error(0)
}

func (m *mockPersister) InsertItem(ctx context.Context, it model.SectionItem, note string) (int64, int64, error) {
	args := m.Called(it, note)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockPersister) UpdateItemText(ctx context.Context, id int64, text string) error {
	return m.Called(id, text).Error(0)
}

func (m *mockPersister) SetItemComplete(ctx context.Context, id int64, complete bool) error {
	return m.Called(id, complete).Error(0)
}

func (m *mockPersister) DeleteItems(ctx context.Context, ids []int64) error {
	return m.Called(ids).Error(0)
}

func (m *mockPersister) SaveItemOrder(ctx context.Context, sectionID int64, orders map[int64]int) error {
	return m.Called(sectionID, orders).Error(0)
}

func (m *mockPersister) ImportImage(ctx context.Context, projectID int64, data []byte, name string) (model.ProjectImage, error) {
	args := m.Called(projectID, data, name)
	return args.Get(0).(model.ProjectImage), args.Error(1)
}

func (m *mockPersister) DeleteImages(ctx context.Context, ids []int64) error {
	return m.Called(ids).Error(0)
}

func newAggregate() *project.Aggregate {
	p := model.Project{Record: model.Record{ID: 1}, Name: "Quilted jacket"}
	sections := []model.Section{
		{Record: model.Record{ID: 10}, ProjectID: 1, Name: "Cutting"},
		{Record: model.Record{ID: 11}, ProjectID: 1, Name: "Fabric"},
		{Record: model.Record{ID: 12}, ProjectID: 1, Name: "Finishing"},
	}
	items := []model.SectionItem{
		{Record: model.Record{ID: 100}, SectionID: 11, Text: "Cut pattern", Order: 0},
		{Record: model.Record{ID: 101}, SectionID: 11, Text: "Pin fabric", Order: 1},
	}
	return project.Load(p, sections, items, nil, nil)
}

func settle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Settle(ctx))
}

func TestFailedDeleteRestoresSectionAtIndex(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	p.On("DeleteSection", int64(11)).Return(errors.New("database is locked"))
	center := notify.NewCenter(notify.WithDelay(0))
	e := New(agg, p, center)
	defer e.Close()

	before := agg.Snapshot()
	eff, err := agg.DeleteSection(11)
	require.NoError(t, err)
	_, err = e.Request(eff)
	require.NoError(t, err)

	require.Len(t, agg.Snapshot().Sections, 2)
	require.Len(t, agg.Deleted(), 1)

	settle(t, e)

	after := agg.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, "Fabric", after.Sections[1].Section.Name)
	assert.Empty(t, agg.Deleted())

	n, ok := center.Current()
	require.True(t, ok)
	assert.Equal(t, "Couldn't delete the section.", n.Message)
	assert.Equal(t, notify.OpDeleteSection, n.Op)
	p.AssertExpectations(t)
}

func TestCommittedDeleteDropsSideList(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	p.On("DeleteSection", int64(10)).Return(nil)
	e := New(agg, p, notify.NewCenter(notify.WithDelay(0)))
	defer e.Close()

	var events []Event
	e.Subscribe(func(ev Event) { events = append(events, ev) })

	eff, err := agg.DeleteSection(10)
	require.NoError(t, err)
	seq, err := e.Request(eff)
	require.NoError(t, err)
	settle(t, e)

	assert.Len(t, agg.Snapshot().Sections, 2)
	assert.Empty(t, agg.Deleted())
	require.Len(t, events, 1)
	assert.Equal(t, Event{Seq: seq, Op: notify.OpDeleteSection, Committed: true}, events[0])
	_, shown := e.Center().Current()
	assert.False(t, shown)
}

func TestRollbackLeavesAggregateUnchanged(t *testing.T) {
	boom := errors.New("disk I/O error")
	cases := map[string]struct {
		setup func(p *mockPersister)
		build func(a *project.Aggregate) (project.Effect, error)
	}{
		"rename project": {
			func(p *mockPersister) { p.On("RenameProject", int64(1), "Denim jacket").Return(boom) },
			func(a *project.Aggregate) (project.Effect, error) { return a.RenameProject("Denim jacket") },
		},
		"add item": {
			func(p *mockPersister) { p.On("InsertItem", mock.Anything, "").Return(int64(0), int64(0), boom) },
			func(a *project.Aggregate) (project.Effect, error) { return a.AddItem(11, "Press", "") },
		},
		"toggle": {
			func(p *mockPersister) { p.On("SetItemComplete", int64(100), true).Return(boom) },
			func(a *project.Aggregate) (project.Effect, error) { return a.ToggleItemComplete(100) },
		},
		"reorder": {
			func(p *mockPersister) { p.On("SaveItemOrder", int64(11), mock.Anything).Return(boom) },
			func(a *project.Aggregate) (project.Effect, error) { return a.ReorderItems(11, 101, 0) },
		},
		"delete items": {
			func(p *mockPersister) { p.On("DeleteItems", []int64{101, 100}).Return(boom) },
			func(a *project.Aggregate) (project.Effect, error) { return a.DeleteItems(101, 100) },
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			agg := newAggregate()
			p := &mockPersister{}
			tc.setup(p)
			e := New(agg, p, notify.NewCenter(notify.WithDelay(0)))
			defer e.Close()

			before := agg.Snapshot()
			eff, err := tc.build(agg)
			require.NoError(t, err)
			_, err = e.Request(eff)
			require.NoError(t, err)
			assert.NotEqual(t, before, agg.Snapshot())

			settle(t, e)
			assert.Equal(t, before, agg.Snapshot())
			p.AssertExpectations(t)
		})
	}
}

func TestQueuedEffectsResolveThroughTempIDs(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	p.On("InsertSection", mock.MatchedBy(func(s model.Section) bool {
		return s.ID == 0 && s.ProjectID == 1 && s.Name == "Section 4"
	})).Return(int64(40), nil)
	p.On("InsertItem", mock.MatchedBy(func(it model.SectionItem) bool {
		return it.SectionID == 40 && it.Text == "Buy thread" && it.Order == 0
	}), "get matching color").Return(int64(400), int64(4000), nil)
	p.On("RenameSection", int64(40), "Notions").Return(nil)

	e := New(agg, p, notify.NewCenter(notify.WithDelay(0)))
	defer e.Close()

	_, err := e.Request(agg.AddSection())
	require.NoError(t, err)
	temp := agg.Snapshot().Sections[3].Section.ID
	require.True(t, project.IsTemp(temp))

	add, err := agg.AddItem(temp, "Buy thread", "get matching color")
	require.NoError(t, err)
	_, err = e.Request(add)
	require.NoError(t, err)
	rename, err := agg.RenameSection(temp, "Notions")
	require.NoError(t, err)
	_, err = e.Request(rename)
	require.NoError(t, err)

	settle(t, e)

	sec := agg.Snapshot().Sections[3]
	assert.Equal(t, int64(40), sec.Section.ID)
	assert.Equal(t, "Notions", sec.Section.Name)
	require.Len(t, sec.Items, 1)
	assert.Equal(t, int64(400), sec.Items[0].Item.ID)
	assert.Equal(t, int64(4000), sec.Items[0].Note.ID)
	p.AssertExpectations(t)
}

func TestCommitsRunInRequestOrderOffTheCallerGoroutine(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	release := make(chan struct{})

	var mu sync.Mutex
	var order []string
	record := func(s string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
	}
	p.On("RenameProject", int64(1), "A").Run(func(args mock.Arguments) {
		<-release
		record("rename")(args)
	}).Return(nil)
	p.On("SetItemComplete", int64(100), true).Run(record("toggle")).Return(nil)
	p.On("UpdateItemText", int64(101), "Pin all layers").Run(record("text")).Return(nil)

	e := New(agg, p, notify.NewCenter(notify.WithDelay(0)))
	defer e.Close()

	for _, mk := range []func() (project.Effect, error){
		func() (project.Effect, error) { return agg.RenameProject("A") },
		func() (project.Effect, error) { return agg.ToggleItemComplete(100) },
		func() (project.Effect, error) { return agg.UpdateItemText(101, "Pin all layers") },
	} {
		eff, err := mk()
		require.NoError(t, err)
		_, err = e.Request(eff)
		require.NoError(t, err)
	}

	// Optimistic state is visible while the first commit is still blocked.
	s := agg.Snapshot()
	assert.Equal(t, "A", s.Project.Name)
	assert.True(t, s.Sections[1].Items[0].Item.IsComplete)
	assert.Equal(t, 3, e.Pending())

	close(release)
	settle(t, e)
	assert.Equal(t, []string{"rename", "toggle", "text"}, order)
	assert.Zero(t, e.Pending())
}

func TestNilEffectAndApplyFailure(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	e := New(agg, p, nil)
	defer e.Close()

	seq, err := e.Request(nil)
	require.NoError(t, err)
	assert.Zero(t, seq)

	eff, err := agg.DeleteSection(10)
	require.NoError(t, err)
	require.NoError(t, eff.Apply(agg))
	// Applying the same delete again finds nothing to delete.
	_, err = e.Request(eff)
	require.ErrorAs(t, err, &project.NotFoundError{})
	assert.Zero(t, e.Pending())
	p.AssertNotCalled(t, "DeleteSection", mock.Anything)
}

func TestReportShowsNotification(t *testing.T) {
	e := New(newAggregate(), &mockPersister{}, notify.NewCenter(notify.WithDelay(0)))
	defer e.Close()

	var got []Event
	e.Subscribe(func(ev Event) { got = append(got, ev) })
	e.Report(notify.OpLoadImages, errors.New("permission denied"))
	e.Report(notify.OpLoadImages, nil)

	n, ok := e.Center().Current()
	require.True(t, ok)
	assert.Equal(t, notify.Message(notify.OpLoadImages), n.Message)
	assert.Len(t, got, 1)
}

func TestRequestAfterClose(t *testing.T) {
	e := New(newAggregate(), &mockPersister{}, nil)
	e.Close()
	_, err := e.Request(newAggregate().AddSection())
	require.ErrorIs(t, err, ErrClosed)
}

func TestRequestDoesNotBlockOnLongBacklog(t *testing.T) {
	agg := newAggregate()
	p := &mockPersister{}
	p.On("SetItemComplete", int64(100), mock.Anything).Return(nil)
	e := New(agg, p, notify.NewCenter(notify.WithDelay(0)))
	defer e.Close()

	const n = 600
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			eff, err := agg.ToggleItemComplete(100)
			if err == nil {
				_, err = e.Request(eff)
			}
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Request blocked with %d effects outstanding", e.Pending())
	}
	assert.Equal(t, n, e.Pending())

	settle(t, e)
	assert.Zero(t, e.Pending())
	assert.False(t, agg.Snapshot().Sections[1].Items[0].Item.IsComplete)
	p.AssertNumberOfCalls(t, "SetItemComplete", n)
}
