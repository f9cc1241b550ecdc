package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/espfw/internal/ui"
	"github.com/muurk/espfw/internal/version"
)

// AppName is shown in the container header.
const AppName = "ESP FIRMWARE MANAGER"

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	FocusedInputStyle = lipgloss.NewStyle().
				Foreground(ui.PrimaryColor).
				Bold(true)

	BlurredInputStyle = lipgloss.NewStyle().
				Foreground(ui.MutedColor)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor).
			Padding(0, 1)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ui.WarningColor).
			Padding(1, 3)
)

func buildHeaderContent(backendURL, user string) string {
	left := lipgloss.NewStyle().
		Foreground(ui.TextColor).
		Bold(true).
		Render(AppName + " " + version.Version)

	right := LabelStyle.Render(backendURL)
	if user != "" {
		right += LabelStyle.Render("  ·  " + user)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// renderContainer wraps a screen in the full-terminal frame: header with
// the backend, content, and a help footer pinned below.
func renderContainer(content, footer, backendURL, user string, width, height int) string {
	if width < ui.MinTerminalWidth {
		width = ui.MinTerminalWidth
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(buildHeaderContent(backendURL, user)),
		lipgloss.NewStyle().Width(width-4).Render(content),
		footerStyle.Render(LabelStyle.Render(footer)),
	)

	frame := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		Width(width - 2)
	if height > 2 {
		frame = frame.Height(height - 2).AlignVertical(lipgloss.Top)
	}
	return frame.Render(inner)
}

// renderModal centers content on a dimmed background.
func renderModal(content string, width, height int) string {
	if width < ui.MinTerminalWidth {
		width = ui.MinTerminalWidth
	}
	if height < 10 {
		height = 10
	}
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		ModalStyle.Render(content),
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("240")),
	)
}
