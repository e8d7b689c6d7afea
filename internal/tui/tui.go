package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"sewing-planner/internal/planner"
)

// Run shows the project screen for s until the user quits. The caller
// closes the session afterwards, which drains outstanding commits.
func Run(ctx context.Context, p *planner.Planner, s *planner.Session) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := New(ctx, p, s)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
