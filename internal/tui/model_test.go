package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sewing-planner/internal/config"
	"sewing-planner/internal/model"
	"sewing-planner/internal/notify"
	"sewing-planner/internal/planner"
	"sewing-planner/internal/store"
)

func newTestModel(t *testing.T, opts ...planner.SessionOption) (Model, *planner.Planner) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:        dir,
		DBFile:         "planner.sqlite",
		ImagesDir:      "images",
		SharedListFile: filepath.Join("shared", "projects.json"),
		SettingsFile:   "settings.json",
		BusyTimeout:    time.Second,
	}
	ctx := context.Background()
	p, err := planner.Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	id, err := p.CreateProject(ctx)
	require.NoError(t, err)
	s, err := p.OpenSession(ctx, id, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return New(ctx, p, s), p
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

// settle feeds commit results back into the model until none are pending.
func settle(t *testing.T, m Model) Model {
	t.Helper()
	for m.session.Engine.Pending() > 0 {
		select {
		case r := <-m.session.Engine.Results():
			next, _ := m.Update(resultMsg(r))
			m = next.(Model)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for commit results")
		}
	}
	return m
}

func sectionItems(t *testing.T, p *planner.Planner, m Model) []model.SectionItem {
	t.Helper()
	items, err := p.SectionItems(context.Background(), m.snap.Sections[0].Section.ID)
	require.NoError(t, err)
	return items
}

func texts(items []model.SectionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

// withItems builds one section holding the given items, cursor on the header.
func withItems(t *testing.T, m Model, items ...string) Model {
	t.Helper()
	m = settle(t, press(t, m, "s"))
	for _, text := range items {
		m.cursor = 0
		m = press(t, m, "a", text, "enter", "enter")
		m = settle(t, m)
	}
	m.cursor = 0
	return m
}

func TestAddSectionAndItemWithNote(t *testing.T) {
	m, p := newTestModel(t)

	m = settle(t, press(t, m, "s"))
	require.Len(t, m.snap.Sections, 1)
	assert.Equal(t, "Section 1", m.snap.Sections[0].Section.Name)

	m = press(t, m, "a", "Buy thread", "enter")
	assert.Equal(t, modeInput, m.mode)
	assert.Equal(t, inputItemNote, m.inputKind)
	m = press(t, m, "get matching color", "enter")
	assert.Equal(t, modeBrowse, m.mode)
	m = settle(t, m)

	agg, err := p.GetProjectSnapshot(context.Background(), m.snap.Project.ID)
	require.NoError(t, err)
	items := agg.Snapshot().Sections[0].Items
	require.Len(t, items, 1)
	assert.Equal(t, "Buy thread", items[0].Item.Text)
	require.NotNil(t, items[0].Note)
	assert.Equal(t, "get matching color", items[0].Note.Text)

	m = press(t, m, "down")
	assert.Contains(t, m.View(), "Buy thread")
}

func TestToggleAndHideCompleted(t *testing.T) {
	m, p := newTestModel(t)
	m = withItems(t, m, "Hem skirt")

	m = settle(t, press(t, m, "down", "space"))
	assert.True(t, m.snap.Sections[0].Items[0].Item.IsComplete)
	assert.True(t, sectionItems(t, p, m)[0].IsComplete)

	m = press(t, m, "c")
	assert.False(t, m.showCompleted)
	assert.Len(t, m.rows, 1, "only the section header is visible")
	assert.NotContains(t, m.View(), "Hem skirt")
	assert.False(t, p.Settings().ShowCompletedItems())
}

func TestMoveModeDropsAndCancels(t *testing.T) {
	m, p := newTestModel(t)
	m = withItems(t, m, "Cut pattern", "Pin fabric", "Sew seams")

	// Drag "Sew seams" to the top, then drop.
	m = press(t, m, "down", "down", "down", "m")
	require.Equal(t, modeMove, m.mode)
	m = press(t, m, "up", "up")
	assert.Equal(t, "Sew seams", m.snap.Sections[0].Items[0].Item.Text)
	m = settle(t, press(t, m, "enter"))
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, []string{"Sew seams", "Cut pattern", "Pin fabric"}, texts(sectionItems(t, p, m)))

	// A cancelled drag leaves memory and storage alone.
	m = press(t, m, "m", "down", "down", "esc")
	assert.Equal(t, 0, m.session.Engine.Pending())
	assert.Equal(t, "Sew seams", m.snap.Sections[0].Items[0].Item.Text)
	assert.Equal(t, []string{"Sew seams", "Cut pattern", "Pin fabric"}, texts(sectionItems(t, p, m)))
}

func TestValidationKeepsInputOpen(t *testing.T) {
	m, _ := newTestModel(t)
	m = withItems(t, m)

	m = press(t, m, "r", "ctrl+u", "enter")
	assert.Equal(t, modeInput, m.mode)
	assert.Equal(t, "Section name can't be empty.", m.inlineErr)
	assert.Contains(t, m.View(), "Section name can't be empty.")

	m = press(t, m, "esc")
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "Section 1", m.snap.Sections[0].Section.Name)
}

func TestFailedCommitShowsToast(t *testing.T) {
	m, p := newTestModel(t)
	m = withItems(t, m, "Press seams")
	itemID := m.snap.Sections[0].Items[0].Item.ID

	ctx := context.Background()
	require.NoError(t, p.DB().Write(ctx, func(w *store.Writer) error {
		return store.SoftDelete[model.SectionItem](ctx, w, itemID)
	}))

	m = settle(t, press(t, m, "down", "space"))
	assert.False(t, m.snap.Sections[0].Items[0].Item.IsComplete, "rolled back")
	assert.Contains(t, m.View(), notify.Message(notify.OpUpdateItemCompletion))

	m = press(t, m, "esc")
	assert.NotContains(t, m.View(), notify.Message(notify.OpUpdateItemCompletion))
}

func TestToastExpiryWakesModel(t *testing.T) {
	m, p := newTestModel(t, planner.WithNotifyOptions(notify.WithDelay(30*time.Millisecond)))
	m = withItems(t, m, "Press seams")
	itemID := m.snap.Sections[0].Items[0].Item.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.DB().Write(ctx, func(w *store.Writer) error {
		return store.SoftDelete[model.SectionItem](ctx, w, itemID)
	}))
	m = settle(t, press(t, m, "down", "space"))
	require.Contains(t, m.View(), notify.Message(notify.OpUpdateItemCompletion))

	for {
		if _, ok := m.session.Center.Current(); !ok {
			break
		}
		msg := waitForToast(ctx, m.session.Center.Changes())()
		require.IsType(t, toastChangedMsg{}, msg, "no change signal before the deadline")
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	assert.NotContains(t, m.View(), notify.Message(notify.OpUpdateItemCompletion))
}
