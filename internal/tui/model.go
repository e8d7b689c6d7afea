package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"sewing-planner/internal/model"
	"sewing-planner/internal/notify"
	"sewing-planner/internal/planner"
	"sewing-planner/internal/project"
	"sewing-planner/internal/reconcile"
)

type mode int

const (
	modeBrowse mode = iota
	modeInput
	modeMove
)

type inputKind int

const (
	inputItemText inputKind = iota
	inputItemNote
	inputEditItem
	inputRenameSection
	inputRenameProject
)

// row is one visible line: a section header (item == -1) or an item.
type row struct {
	section int
	item    int
}

type (
	resultMsg        reconcile.Result
	resultsClosedMsg struct{}
	toastChangedMsg  struct{}
	imagesMsg        struct {
		data map[int64][]byte
		err  error
	}
)

// Model is the project screen. Every mutation goes through the session's
// engine; commit results come back as resultMsg and are resolved here, on
// the program's goroutine.
type Model struct {
	ctx     context.Context
	planner *planner.Planner
	session *planner.Session

	snap          project.Snapshot
	rows          []row
	cursor        int
	showCompleted bool

	mode        mode
	input       textinput.Model
	inputKind   inputKind
	target      int64
	pendingText string

	moveSection int64
	moveItem    int64
	moveIndex   int

	images    map[int64][]byte
	inlineErr string

	width  int
	height int
}

func New(ctx context.Context, p *planner.Planner, s *planner.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 500

	m := Model{
		ctx:           ctx,
		planner:       p,
		session:       s,
		input:         ti,
		showCompleted: p.Settings().ShowCompletedItems(),
		width:         80,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForResult(m.session.Engine.Results()),
		waitForToast(m.ctx, m.session.Center.Changes()),
		loadImages(m.ctx, m.planner, m.snap.Images),
	)
}

func waitForResult(ch <-chan reconcile.Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return resultsClosedMsg{}
		}
		return resultMsg(r)
	}
}

// waitForToast wakes the program when the notification changes, including
// when it expires on its own timer.
func waitForToast(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return toastChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func loadImages(ctx context.Context, p *planner.Planner, images []model.ProjectImage) tea.Cmd {
	return func() tea.Msg {
		data, err := p.LoadImages(ctx, images)
		return imagesMsg{data: data, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case resultMsg:
		m.session.Engine.Resolve(reconcile.Result(msg))
		m.refresh()
		return m, waitForResult(m.session.Engine.Results())

	case resultsClosedMsg:
		return m, nil

	case toastChangedMsg:
		return m, waitForToast(m.ctx, m.session.Center.Changes())

	case imagesMsg:
		if msg.err != nil {
			m.session.Engine.Report(notify.OpLoadImages, msg.err)
			return m, nil
		}
		m.images = msg.data
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeInput:
			return m.updateInput(msg)
		case modeMove:
			return m.updateMove(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r, hasRow := m.current()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "s":
		m.apply(m.session.Aggregate.AddSection(), nil)
		m.cursor = m.headerRow(len(m.snap.Sections) - 1)
	case "a":
		if hasRow {
			return m.startInput(inputItemText, m.snap.Sections[r.section].Section.ID, "", "New item")
		}
	case "r":
		if !hasRow {
			break
		}
		sec := m.snap.Sections[r.section]
		if r.item < 0 {
			return m.startInput(inputRenameSection, sec.Section.ID, sec.Section.Name, "Section name")
		}
		it := sec.Items[r.item].Item
		return m.startInput(inputEditItem, it.ID, it.Text, "Item text")
	case "R":
		return m.startInput(inputRenameProject, m.snap.Project.ID, m.snap.Project.Name, "Project name")
	case " ", "x":
		if hasRow && r.item >= 0 {
			m.apply(m.session.Aggregate.ToggleItemComplete(m.snap.Sections[r.section].Items[r.item].Item.ID))
		}
	case "d":
		if !hasRow {
			break
		}
		sec := m.snap.Sections[r.section]
		if r.item < 0 {
			m.apply(m.session.Aggregate.DeleteSection(sec.Section.ID))
		} else {
			m.apply(m.session.Aggregate.DeleteItem(sec.Items[r.item].Item.ID))
		}
	case "m":
		if hasRow && r.item >= 0 {
			sec := m.snap.Sections[r.section]
			m.mode = modeMove
			m.moveSection = sec.Section.ID
			m.moveItem = sec.Items[r.item].Item.ID
			m.moveIndex = r.item
			m.inlineErr = ""
			m.refresh()
		}
	case "c":
		m.showCompleted = !m.showCompleted
		if err := m.planner.Settings().SetShowCompletedItems(m.showCompleted); err != nil {
			m.inlineErr = err.Error()
		}
		m.refresh()
	case "P":
		m.apply(m.session.Aggregate.SetProjectCompleted(!m.snap.Project.Completed))
	case "i":
		return m, loadImages(m.ctx, m.planner, m.snap.Images)
	case "esc":
		m.session.Center.Dismiss()
		m.inlineErr = ""
	}
	return m, nil
}

func (m Model) updateMove(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	agg := m.session.Aggregate
	n := 0
	if si := m.sectionIndex(m.moveSection); si >= 0 {
		n = len(m.snap.Sections[si].Items)
	}
	switch msg.String() {
	case "up", "k":
		if m.moveIndex > 0 {
			m.dragTo(m.moveIndex - 1)
		}
	case "down", "j":
		if m.moveIndex < n-1 {
			m.dragTo(m.moveIndex + 1)
		}
	case "enter":
		eff, err := agg.Drop(m.moveSection)
		m.mode = modeBrowse
		m.apply(eff, err)
		m.refresh()
	case "esc":
		agg.CancelDrag(m.moveSection)
		m.mode = modeBrowse
		m.refresh()
	}
	return m, nil
}

func (m *Model) dragTo(index int) {
	if err := m.session.Aggregate.DragEnter(m.moveSection, m.moveItem, index); err != nil {
		m.inlineErr = err.Error()
		return
	}
	m.moveIndex = index
	m.refresh()
}

func (m Model) startInput(kind inputKind, target int64, value, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = modeInput
	m.inputKind = kind
	m.target = target
	m.inlineErr = ""
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	agg := m.session.Aggregate
	value := m.input.Value()

	var (
		eff project.Effect
		err error
	)
	switch m.inputKind {
	case inputItemText:
		if strings.TrimSpace(value) == "" {
			m.inlineErr = "Item text can't be empty."
			return m, nil
		}
		m.pendingText = value
		return m.startInput(inputItemNote, m.target, "", "Note (optional)")
	case inputItemNote:
		eff, err = agg.AddItem(m.target, m.pendingText, value)
	case inputEditItem:
		eff, err = agg.UpdateItemText(m.target, value)
	case inputRenameSection:
		eff, err = agg.RenameSection(m.target, value)
	case inputRenameProject:
		eff, err = agg.RenameProject(value)
	}

	var verr *project.ValidationError
	if errors.As(err, &verr) {
		// Keep the input open so the value can be fixed.
		m.inlineErr = verr.Message
		return m, nil
	}
	m.closeInput()
	m.apply(eff, err)
	return m, nil
}

func (m *Model) closeInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.input.SetValue("")
	m.pendingText = ""
}

// apply hands an intent's effect to the engine. Intent errors are shown
// inline.
func (m *Model) apply(eff project.Effect, err error) {
	if err != nil {
		m.inlineErr = err.Error()
		return
	}
	m.inlineErr = ""
	if _, err := m.session.Apply(eff); err != nil {
		m.inlineErr = err.Error()
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.snap = m.session.Aggregate.Snapshot()
	m.rows = nil
	for si, sec := range m.snap.Sections {
		m.rows = append(m.rows, row{section: si, item: -1})
		for ii, it := range sec.Items {
			moving := m.mode == modeMove && it.Item.ID == m.moveItem
			if it.Item.IsComplete && !m.showCompleted && !moving {
				continue
			}
			m.rows = append(m.rows, row{section: si, item: ii})
			if moving {
				m.cursor = len(m.rows) - 1
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) headerRow(section int) int {
	for i, r := range m.rows {
		if r.section == section && r.item < 0 {
			return i
		}
	}
	return m.cursor
}

func (m Model) sectionIndex(id int64) int {
	id = m.session.Aggregate.Resolve(id)
	for i, sec := range m.snap.Sections {
		if sec.Section.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) View() string {
	w := m.width
	if w <= 0 {
		w = 80
	}
	var b strings.Builder

	title := styleTitle().Render(m.snap.Project.Name)
	if m.snap.Project.Completed {
		title += " " + lipgloss.NewStyle().Foreground(colorDone).Render("✓ completed")
	}
	b.WriteString(fit(title, w) + "\n")
	b.WriteString(fit(styleMuted().Render(m.imageSummary()), w) + "\n\n")

	if len(m.rows) == 0 {
		b.WriteString(styleMuted().Render("No sections yet. Press s to add one.") + "\n")
	}
	for i, r := range m.rows {
		line := m.renderRow(r)
		if i == m.cursor {
			line = styleSelected().Render(line)
		}
		b.WriteString(fit(line, w) + "\n")
	}

	if r, ok := m.current(); ok && r.item >= 0 {
		if note := m.snap.Sections[r.section].Items[r.item].Note; note != nil {
			b.WriteString("\n" + lipgloss.NewStyle().PaddingLeft(4).Render(renderNote(note.Text, w-4)) + "\n")
		}
	}

	b.WriteString("\n")
	if m.mode == modeInput {
		b.WriteString(styleMuted().Render(m.input.Placeholder) + "\n")
		b.WriteString(renderInputLine(w, m.input.View()) + "\n")
	}
	if m.inlineErr != "" {
		b.WriteString(fit(styleInlineError().Render(m.inlineErr), w) + "\n")
	}
	if n, ok := m.session.Center.Current(); ok {
		b.WriteString(fit(styleToast().Render(n.Message), w) + "\n")
	}
	b.WriteString(fit(styleMuted().Render(m.help()), w))
	return b.String()
}

func (m Model) renderRow(r row) string {
	sec := m.snap.Sections[r.section]
	if r.item < 0 {
		done := 0
		for _, it := range sec.Items {
			if it.Item.IsComplete {
				done++
			}
		}
		return styleSection().Render(sec.Section.Name) + styleMuted().Render(fmt.Sprintf("  %d/%d", done, len(sec.Items)))
	}
	it := sec.Items[r.item]
	box, text := "[ ]", it.Item.Text
	if it.Item.IsComplete {
		box = "[x]"
		text = styleDone().Render(text)
	}
	line := "  " + box + " " + text
	if it.Note != nil {
		line += styleMuted().Render(" ✎")
	}
	if m.mode == modeMove && it.Item.ID == m.moveItem {
		line = "↕" + line[1:]
	}
	return line
}

func (m Model) imageSummary() string {
	n := len(m.snap.Images)
	if n == 0 {
		return "no images"
	}
	var size uint64
	loaded := 0
	for _, im := range m.snap.Images {
		if data, ok := m.images[im.ID]; ok {
			size += uint64(len(data))
			loaded++
		}
	}
	s := humanize.Comma(int64(n)) + " image"
	if n != 1 {
		s += "s"
	}
	if loaded > 0 {
		s += " · " + humanize.Bytes(size)
	}
	return s
}

func (m Model) help() string {
	switch m.mode {
	case modeInput:
		return "enter: save   esc: cancel"
	case modeMove:
		return "↑/↓: move   enter: drop   esc: cancel"
	}
	return "↑/↓: select  a: add item  s: add section  r: rename  space: toggle  d: delete  m: move  c: show/hide done  q: quit"
}
