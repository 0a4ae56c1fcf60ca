// Package markdown renders finalized bot messages for terminal display.
package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into styled terminal output. It degrades to
// plain text when styling is unavailable, so callers never need a
// fallback path of their own.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer builds a renderer with the terminal's auto-detected style
// wrapped at width columns. A failed initialization yields a plain-text
// renderer, not an error.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{term: term}
}

// Plain returns a renderer that passes text through untouched.
func Plain() *Renderer {
	return &Renderer{}
}

// Render formats one message. The input is returned unchanged when
// styling is off or fails.
func (r *Renderer) Render(text string) string {
	if r.term == nil {
		return text
	}
	out, err := r.term.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
