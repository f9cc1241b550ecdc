package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ItemStatus is the state of one item in a bulk run
type ItemStatus int

const (
	ItemPending  ItemStatus = iota // Not yet started
	ItemRunning                    // In flight
	ItemComplete                   // Succeeded
	ItemFailed                     // Failed
	ItemSkipped                    // Not attempted after an earlier failure
)

// Item is one line in a bulk progress list
type Item struct {
	Number  int
	Name    string
	Status  ItemStatus
	Message string // e.g., "12,345 bytes", "HTTP 404"
}

// Progress tracks a bulk operation: a bar plus one line per item.
type Progress struct {
	Label   string
	Items   []Item
	Percent float64 // 0.0 - 1.0
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress display for the named items
func NewProgress(label string, names []string) *Progress {
	items := make([]Item, len(names))
	for i, name := range names {
		items[i] = Item{Number: i + 1, Name: name}
	}
	p := &Progress{Label: label, Items: items}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 24 // room for percentage and counter
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Update sets an item's status and optional message. Out-of-range
// numbers are ignored.
func (p *Progress) Update(number int, status ItemStatus, message string) {
	if number < 1 || number > len(p.Items) {
		return
	}
	p.Items[number-1].Status = status
	p.Items[number-1].Message = message

	if len(p.Items) == 0 {
		return
	}
	p.Percent = float64(p.Settled()) / float64(len(p.Items))
}

// Settled counts items that are no longer pending or running.
func (p *Progress) Settled() int {
	n := 0
	for _, it := range p.Items {
		switch it.Status {
		case ItemComplete, ItemFailed, ItemSkipped:
			n++
		}
	}
	return n
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder
	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}
	b.WriteString(p.RenderBar())
	b.WriteString("\n\n")

	lines := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		lines = append(lines, p.RenderItem(it))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// RenderBar renders the bar line with percentage and counter
func (p *Progress) RenderBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]",
			p.bar.ViewAs(p.Percent), p.Percent*100, p.Settled(), len(p.Items)))
}

// RenderItem renders a single item line
func (p *Progress) RenderItem(it Item) string {
	var marker string
	var style lipgloss.Style
	switch it.Status {
	case ItemComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case ItemRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case ItemFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case ItemSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", it.Number, len(p.Items)))
	b.WriteString(style.Render(it.Name))

	// Align markers on one column.
	padding := 45 - lipgloss.Width(it.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if it.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + it.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
