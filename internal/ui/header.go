package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one key/value line in a header. Params keep their order.
type Param struct {
	Key   string
	Value string
}

// Header represents a command banner with title, command, and parameters.
type Header struct {
	Title   string  // e.g., "BULK DELETE"
	Command string  // e.g., "espfw delete"
	Params  []Param // e.g., {"Backend", "http://localhost:5000/api"}
	Width   int
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(top)
	}

	keyWidth := 0
	for _, p := range h.Params {
		if n := lipgloss.Width(p.Key); n > keyWidth {
			keyWidth = n
		}
	}
	lines := make([]string, 0, len(h.Params))
	for _, p := range h.Params {
		key := HeaderParamKeyStyle.Render(p.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(p.Key)))
		lines = append(lines, key+" "+HeaderParamValueStyle.Render(p.Value))
	}

	divider := RenderHorizontalDivider(width-6, "─")
	content := lipgloss.JoinVertical(lipgloss.Left, top, divider, strings.Join(lines, "\n"))
	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
