package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/espfw/internal/listing"
)

// Printer writes styled UI components to a writer. Commands that run once
// and exit print through it.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details ...Param) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintTable prints one page of firmwares with its pagination caption.
func (p *Printer) PrintTable(view listing.View) {
	p.Println(RenderFirmwareTable(view, TableOptions{Width: p.width, Cursor: -1}))
	if caption := RenderPagination(view); caption != "" {
		p.Println(caption)
	}
}

// PrintPleaseWait prints a styled notice for a long-running operation.
func (p *Printer) PrintPleaseWait(message string) {
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)
	p.Println(style.Render("⏳ " + message + "..."))
}
