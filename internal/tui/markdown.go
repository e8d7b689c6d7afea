package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

var (
	noteRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle is avoided because its
	// terminal queries can block.
	noteRenderers = map[string]*glamour.TermRenderer{}
)

// renderNote renders an item note as markdown without block margins.
// Rendering failures fall back to the raw text.
func renderNote(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := noteStyle()
	key := style + ":" + strconv.Itoa(width)

	noteRendererMu.Lock()
	r := noteRenderers[key]
	noteRendererMu.Unlock()

	if r == nil {
		cfg := styles.DarkStyleConfig
		if style == "light" {
			cfg = styles.LightStyleConfig
		}
		zero := uint(0)
		cfg.Document.Margin = &zero
		cfg.Paragraph.Margin = &zero
		cfg.List.Margin = &zero

		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(cfg),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		noteRendererMu.Lock()
		if existing := noteRenderers[key]; existing != nil {
			r = existing
		} else {
			noteRenderers[key] = rr
			r = rr
		}
		noteRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
