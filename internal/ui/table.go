package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/muurk/espfw/internal/listing"
)

// TableOptions controls firmware table rendering.
type TableOptions struct {
	Width int

	// Cursor is the highlighted row index, or -1 for none.
	Cursor int

	// Selectable adds the checkbox column.
	Selectable bool
}

// FirmwareColumns are the table headings after the optional checkbox.
var FirmwareColumns = []string{"Version", "Device", "Description", "File", "Size", "Uploaded"}

// RenderFirmwareTable draws one page of the firmware list.
func RenderFirmwareTable(view listing.View, opts TableOptions) string {
	headers := FirmwareColumns
	if opts.Selectable {
		box := CheckboxOff
		if view.AllVisibleSelected() {
			box = CheckboxOn
		}
		headers = append([]string{box}, FirmwareColumns...)
	}

	rows := make([][]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		fw := r.Firmware
		cells := []string{
			fw.Version,
			r.DeviceName,
			fw.Description,
			fw.DisplayFileName(),
			FormatSize(fw.FileSize),
			r.Uploaded,
		}
		if opts.Selectable {
			box := CheckboxOff
			if r.Selected {
				box = CheckboxOn
			}
			cells = append([]string{box}, cells...)
		}
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row == opts.Cursor:
				return TableCursorStyle
			case row >= 0 && row < len(view.Rows) && view.Rows[row].Selected:
				return TableSelectedStyle
			}
			return TableCellStyle
		})
	if opts.Width > 0 {
		t = t.Width(opts.Width)
	}

	if view.Empty() {
		return t.Render() + "\n" + MutedStyle.Render("  No firmwares found")
	}
	return t.Render()
}

// RenderPagination renders the caption and page position under the table.
func RenderPagination(view listing.View) string {
	if view.Empty() {
		return ""
	}
	prev, next := "‹ prev", "next ›"
	if !view.CanPrev() {
		prev = MutedStyle.Render(prev)
	}
	if !view.CanNext() {
		next = MutedStyle.Render(next)
	}
	return fmt.Sprintf("  %s    %s  page %d of %d  %s",
		view.Summary(), prev, view.Page, view.TotalPages, next)
}

// FormatSize renders a byte count for display; unknown or zero sizes show
// as "N/A".
func FormatSize(size *int64) string {
	if size == nil || *size <= 0 {
		return "N/A"
	}
	return humanize.Bytes(uint64(*size))
}
