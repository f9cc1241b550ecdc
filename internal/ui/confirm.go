package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Prompter asks yes/no questions on a terminal. It satisfies the
// manager's Confirmer and Notifier interfaces for command-line use.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	// AssumeYes answers every confirmation with yes without prompting.
	AssumeYes bool

	// Items, when set, are listed in the warning box above the prompt.
	Items []string

	reader *bufio.Reader
}

// Confirm prints prompt in a warning box and reads a y/N answer.
// Anything other than "y" or "yes" declines, as does end of input.
func (p *Prompter) Confirm(prompt string) bool {
	if p.AssumeYes {
		return true
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render("   ⚠  "+prompt))
	if len(p.Items) > 0 {
		lines = append(lines, "")
		for _, item := range p.Items {
			lines = append(lines, "   • "+item)
		}
	}
	lines = append(lines, "")

	width := GetTerminalWidth()
	_, _ = fmt.Fprintln(p.Out, WarningBoxStyle(width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprint(p.Out, lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render("Proceed? [y/N]: "))

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	input, err := p.reader.ReadString('\n')
	_, _ = fmt.Fprintln(p.Out)
	if err != nil && input == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	_, _ = fmt.Fprintln(p.Out, MutedStyle.Render("  Operation cancelled."))
	return false
}

// Notify prints a notice line.
func (p *Prompter) Notify(message string) {
	_, _ = fmt.Fprintln(p.Out, ErrorMessageStyle.Render("  "+FailureMarker+" "+message))
}
