// Package render turns markdown into styled terminal text.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer converts markdown text into displayable output. Callers fall
// back to the raw text when rendering fails; errors never reach the user.
type Renderer interface {
	Render(text string) (string, error)
}

// Markdown renders with glamour using an auto-detected terminal style.
type Markdown struct {
	tr *glamour.TermRenderer
}

// NewMarkdown creates a markdown renderer wrapped to width columns.
func NewMarkdown(width int) (*Markdown, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Markdown{tr: tr}, nil
}

// Render implements Renderer.
func (m *Markdown) Render(text string) (string, error) {
	out, err := m.tr.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// Plain is a Renderer that returns the input unchanged. Used where styled
// output is unavailable and in tests.
type Plain struct{}

// Render implements Renderer.
func (Plain) Render(text string) (string, error) {
	return text, nil
}
