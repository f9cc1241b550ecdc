package dashboard

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/manager"
	"github.com/muurk/espfw/internal/ui"
)

type formField int

const (
	fieldVersion formField = iota
	fieldDescription
	fieldDevice
	fieldFile
	fieldCount
)

// uploadForm edits a manager.UploadForm. Nothing is validated here; the
// backend decides what it accepts.
type uploadForm struct {
	version     textinput.Model
	description textinput.Model
	file        textinput.Model

	devices []listing.Option
	device  int // index into devices, -1 for none

	focus formField

	picker  filepicker.Model
	picking bool

	keys formKeyMap
}

func newUploadForm() uploadForm {
	version := textinput.New()
	version.Placeholder = "1.0.0"
	version.CharLimit = 64
	version.Width = 40

	description := textinput.New()
	description.Placeholder = "What changed"
	description.CharLimit = 256
	description.Width = 40

	file := textinput.New()
	file.Placeholder = "path/to/firmware.bin"
	file.Width = 40

	fp := filepicker.New()
	fp.AllowedTypes = []string{".bin"}
	fp.DirAllowed = true
	fp.FileAllowed = true
	fp.ShowSize = true
	fp.ShowPermissions = false
	if cwd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = cwd
	}

	return uploadForm{
		version:     version,
		description: description,
		file:        file,
		device:      -1,
		picker:      fp,
		keys:        newFormKeyMap(),
	}
}

// load fills the form from the manager state and focuses the first field.
func (f *uploadForm) load(form manager.UploadForm, devices []listing.Option) tea.Cmd {
	f.version.SetValue(form.Version)
	f.description.SetValue(form.Description)
	f.file.SetValue(form.FilePath)
	f.devices = devices
	f.device = -1
	for i, d := range devices {
		if d.Value == form.EspID {
			f.device = i
		}
	}
	f.picking = false
	return f.setFocus(fieldVersion)
}

// setDevices replaces the device choices, keeping the chosen device when it
// is still listed.
func (f *uploadForm) setDevices(devices []listing.Option) {
	chosen := f.value().EspID
	f.devices = devices
	f.device = -1
	for i, d := range devices {
		if d.Value == chosen {
			f.device = i
		}
	}
}

// value returns the form contents.
func (f uploadForm) value() manager.UploadForm {
	form := manager.UploadForm{
		Version:     f.version.Value(),
		Description: f.description.Value(),
		FilePath:    strings.TrimSpace(f.file.Value()),
	}
	if f.device >= 0 && f.device < len(f.devices) {
		form.EspID = f.devices[f.device].Value
	}
	return form
}

func (f *uploadForm) setFocus(field formField) tea.Cmd {
	f.focus = (field + fieldCount) % fieldCount
	f.version.Blur()
	f.description.Blur()
	f.file.Blur()
	switch f.focus {
	case fieldVersion:
		return f.version.Focus()
	case fieldDescription:
		return f.description.Focus()
	case fieldFile:
		return f.file.Focus()
	}
	return nil
}

// formResult tells the dashboard what the user asked for.
type formResult int

const (
	formEditing formResult = iota
	formSubmit
	formCancel
)

func (f uploadForm) update(msg tea.Msg) (uploadForm, tea.Cmd, formResult) {
	if f.picking {
		return f.updatePicker(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil, formEditing
	}

	switch {
	case key.Matches(keyMsg, f.keys.Cancel):
		return f, nil, formCancel
	case key.Matches(keyMsg, f.keys.Submit):
		if keyMsg.String() == "enter" && f.focus != fieldFile {
			cmd := f.setFocus(f.focus + 1)
			return f, cmd, formEditing
		}
		return f, nil, formSubmit
	case key.Matches(keyMsg, f.keys.Next):
		cmd := f.setFocus(f.focus + 1)
		return f, cmd, formEditing
	case key.Matches(keyMsg, f.keys.Prev):
		cmd := f.setFocus(f.focus - 1)
		return f, cmd, formEditing
	case f.focus == fieldDevice && key.Matches(keyMsg, f.keys.Cycle):
		f.cycleDevice(keyMsg.String() == "right")
		return f, nil, formEditing
	case f.focus == fieldFile && key.Matches(keyMsg, f.keys.Browse):
		f.picking = true
		return f, f.picker.Init(), formEditing
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldVersion:
		f.version, cmd = f.version.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldFile:
		f.file, cmd = f.file.Update(msg)
	}
	return f, cmd, formEditing
}

func (f *uploadForm) cycleDevice(forward bool) {
	n := len(f.devices)
	if n == 0 {
		return
	}
	// -1 (none) is part of the cycle.
	pos := f.device + 1
	if forward {
		pos = (pos + 1) % (n + 1)
	} else {
		pos = (pos + n) % (n + 1)
	}
	f.device = pos - 1
}

func (f uploadForm) updatePicker(msg tea.Msg) (uploadForm, tea.Cmd, formResult) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && (key.Matches(keyMsg, f.keys.Cancel) || key.Matches(keyMsg, f.keys.Browse)) {
		f.picking = false
		return f, nil, formEditing
	}

	var cmd tea.Cmd
	f.picker, cmd = f.picker.Update(msg)
	if ok, path := f.picker.DidSelectFile(msg); ok {
		f.file.SetValue(path)
		f.picking = false
	}
	return f, cmd, formEditing
}

func (f uploadForm) view(message string) string {
	if f.picking {
		return lipgloss.JoinVertical(lipgloss.Left,
			TitleStyle.Render("Choose firmware file"),
			LabelStyle.Render("Directory: "+f.picker.CurrentDirectory),
			"",
			f.picker.View(),
		)
	}

	device := "(none)"
	if f.device >= 0 && f.device < len(f.devices) {
		device = f.devices[f.device].Label
	}
	deviceLine := BlurredInputStyle.Render("‹ " + device + " ›")
	if f.focus == fieldDevice {
		deviceLine = FocusedInputStyle.Render("‹ " + device + " ›")
	}

	rows := []string{
		TitleStyle.Render("Upload firmware"),
		"",
		f.label("Version", fieldVersion) + f.version.View(),
		f.label("Description", fieldDescription) + f.description.View(),
		f.label("Device", fieldDevice) + deviceLine,
		f.label("File", fieldFile) + f.file.View(),
	}
	if message != "" {
		rows = append(rows, "", ui.MessageStyle.Render(message))
	}
	return PanelStyle.Render(strings.Join(rows, "\n"))
}

func (f uploadForm) label(text string, field formField) string {
	style := BlurredInputStyle
	if f.focus == field {
		style = FocusedInputStyle
	}
	return style.Width(14).Render(text + ":")
}
