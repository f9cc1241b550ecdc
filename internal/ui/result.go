package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string  // e.g., "Export saved"
	Details         []Param // Key-value details, shown in order
	Error           error   // Error (for failure results)
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	switch r.Type {
	case ResultFailure:
		return r.renderFailure()
	case ResultWarning:
		return r.renderDetails(
			lipgloss.NewStyle().Foreground(WarningColor).Bold(true),
			"⚠  WARNING", WarningBoxStyle(r.Width))
	default:
		return r.renderDetails(SuccessTitleStyle, SuccessMarker+"  SUCCESS", SuccessBoxStyle(r.Width))
	}
}

func (r *Result) renderDetails(titleStyle lipgloss.Style, label string, box lipgloss.Style) string {
	lines := []string{"", titleStyle.Render(fmt.Sprintf("   %s  ─  %s", label, r.Title)), ""}
	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	lines = append(lines, "")
	return box.Render(strings.Join(lines, "\n"))
}

func (r *Result) renderFailure() string {
	lines := []string{"", ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)), ""}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range r.Troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("  • "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(r.Width).Render(strings.Join(tips, "\n")), "")
	}

	return ErrorBoxStyle(r.Width).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
