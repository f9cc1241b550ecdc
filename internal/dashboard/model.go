package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/manager"
	"github.com/muurk/espfw/internal/ui"
)

// Watcher delivers backend change events until ctx is done.
// *backend.Client implements it.
type Watcher interface {
	Watch(ctx context.Context, fn func(backend.Event)) error
}

// Options configures the dashboard.
type Options struct {
	// Manager configures the screen controller. Its Confirmer and Notifier
	// are replaced by the dashboard's own.
	Manager manager.Options

	// Watcher, when set, triggers a firmware refresh on every change event.
	Watcher Watcher

	BackendURL string
	User       string

	// Now stamps exports. Defaults to time.Now.
	Now func() time.Time
}

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeConfirm
	modeNotice
	modeUpload
)

type action int

const (
	actionNone action = iota
	actionDeleteOne
	actionDeleteSelected
)

// gate answers the manager's confirmation with the answer the user already
// gave in the dashboard. Each approval is consumed by one Confirm.
type gate struct {
	mu       sync.Mutex
	approved bool
}

func (g *gate) approve() {
	g.mu.Lock()
	g.approved = true
	g.mu.Unlock()
}

func (g *gate) Confirm(string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.approved
	g.approved = false
	return ok
}

// inbox collects notices raised while an operation runs; bulk downloads
// may raise them from several goroutines.
type inbox struct {
	mu      sync.Mutex
	notices []string
}

func (b *inbox) Notify(message string) {
	b.mu.Lock()
	b.notices = append(b.notices, message)
	b.mu.Unlock()
}

func (b *inbox) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// Model is the firmware dashboard.
//
// Manager operations run as commands while busy is set. The list engine is
// only touched by the running command until its result message arrives, and
// View renders the snapshot taken afterwards.
type Model struct {
	mgr     *manager.Manager
	watcher Watcher
	gate    *gate
	inbox   *inbox
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	events chan backend.Event

	backendURL string
	user       string

	width  int
	height int

	mode      mode
	busy      bool
	busyLabel string
	stale     bool
	expired   bool

	// Snapshot of the engine, refreshed by sync.
	view          listing.View
	cursor        int
	projectLabel  string
	deviceLabel   string
	selectedCount int
	message       string

	status  string
	notices []string
	prompt  string
	pending action
	target  string

	search  textinput.Model
	form    uploadForm
	spinner spinner.Model
	help    help.Model
	keys    KeyMap
}

// New creates the dashboard and its manager.
func New(opts Options) Model {
	g := &gate{}
	box := &inbox{}
	mopts := opts.Manager
	mopts.Confirmer = g
	mopts.Notifier = box

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	search := textinput.New()
	search.Placeholder = "version, device or date"
	search.Prompt = "/ "
	search.Width = 30

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())
	width, height := ui.GetTerminalSize()

	m := Model{
		mgr:        manager.New(mopts),
		watcher:    opts.Watcher,
		gate:       g,
		inbox:      box,
		now:        now,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan backend.Event, 16),
		backendURL: opts.BackendURL,
		user:       opts.User,
		width:      width,
		height:     height,
		search:     search,
		form:       newUploadForm(),
		spinner:    s,
		help:       help.New(),
		keys:       DefaultKeyMap(),
	}
	// Init starts the first load.
	m.busy, m.busyLabel = true, "Loading"
	m.sync()
	return m
}

// Manager returns the screen controller.
func (m Model) Manager() *manager.Manager { return m.mgr }

// SessionExpired reports whether the dashboard quit because the backend
// rejected the session.
func (m Model) SessionExpired() bool { return m.expired }

// Init loads the collections and subscribes to change events.
func (m Model) Init() tea.Cmd {
	ctx, mgr := m.ctx, m.mgr
	cmds := []tea.Cmd{m.spinner.Tick, func() tea.Msg { return refreshOp(true)(ctx, mgr) }}
	if m.watcher != nil {
		cmds = append(cmds, watchCmd(m.ctx, m.watcher, m.events), waitEvent(m.ctx, m.events))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		return m.finish(msg)

	case eventMsg:
		next := waitEvent(m.ctx, m.events)
		if m.busy {
			m.stale = true
			return m, next
		}
		var cmd tea.Cmd
		m, cmd = m.start("Refreshing", refreshOp(false))
		return m, tea.Batch(cmd, next)

	case watchEndedMsg:
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
	}

	if m.busy {
		if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Quit) && m.mode != modeUpload && m.mode != modeSearch {
			return m.quit()
		}
		return m, nil
	}

	switch m.mode {
	case modeSearch:
		return m.updateSearch(msg)
	case modeConfirm:
		return m.updateConfirm(msg)
	case modeNotice:
		return m.updateNotice(msg)
	case modeUpload:
		return m.updateUpload(msg)
	}
	return m.updateBrowse(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m Model) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	e := m.mgr.Engine()
	m.status = ""

	switch {
	case key.Matches(k, m.keys.Quit):
		return m.quit()

	case key.Matches(k, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, m.keys.Down):
		if m.cursor < len(m.view.Rows)-1 {
			m.cursor++
		}
	case key.Matches(k, m.keys.PrevPage):
		if e.PrevPage() {
			m.cursor = 0
		}
	case key.Matches(k, m.keys.NextPage):
		if e.NextPage() {
			m.cursor = 0
		}

	case key.Matches(k, m.keys.Toggle):
		if id := m.currentID(); id != "" {
			e.ToggleRowSelection(id)
		}
	case key.Matches(k, m.keys.ToggleAll):
		e.ToggleAllVisibleSelection(!m.view.AllVisibleSelected())

	case key.Matches(k, m.keys.Search):
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(k, m.keys.Project):
		e.SetProjectFilter(nextOption(e.ProjectOptions(), e.ProjectFilter()))
		m.cursor = 0
	case key.Matches(k, m.keys.Device):
		e.SetDeviceFilter(nextOption(e.DeviceOptions(), e.DeviceFilter()))
		m.cursor = 0

	case key.Matches(k, m.keys.Download):
		if m.selectedCount == 0 {
			return m.notify(manager.MsgNoSelection), nil
		}
		return m.start("Downloading", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
			report, err := mgr.DownloadSelected(ctx)
			status := ""
			if report != nil {
				status = fmt.Sprintf("Downloaded %d of %d", len(report.Succeeded()), len(report.Results))
			}
			return opDoneMsg{status: status, err: err}
		})
	case key.Matches(k, m.keys.DownloadOne):
		id := m.currentID()
		if id == "" {
			return m, nil
		}
		return m.start("Downloading", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
			path, err := mgr.DownloadOne(ctx, id)
			return opDoneMsg{status: savedStatus(path), err: err}
		})

	case key.Matches(k, m.keys.Delete):
		if m.selectedCount == 0 {
			return m.notify(manager.MsgNoSelection), nil
		}
		m.mode, m.pending, m.prompt = modeConfirm, actionDeleteSelected, manager.PromptDeleteSelected
	case key.Matches(k, m.keys.DeleteOne):
		if id := m.currentID(); id != "" {
			m.mode, m.pending, m.prompt, m.target = modeConfirm, actionDeleteOne, manager.PromptDeleteOne, id
		}

	case key.Matches(k, m.keys.Upload):
		m.mgr.OpenUpload()
		m.mode = modeUpload
		cmd := m.form.load(m.mgr.Form(), allDevices(e))
		return m, cmd

	case key.Matches(k, m.keys.Export):
		now := m.now()
		return m.start("Exporting", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
			path, err := mgr.Export(now)
			return opDoneMsg{status: savedStatus(path), err: err}
		})

	case key.Matches(k, m.keys.Refresh):
		return m.start("Loading", refreshOp(true))

	case key.Matches(k, m.keys.Dismiss):
		m.mgr.ClearMessage()

	case key.Matches(k, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.sync()
	return m, nil
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			m.search.Blur()
			m.mode = modeBrowse
			return m, nil
		case "esc":
			m.search.SetValue("")
			m.search.Blur()
			m.mode = modeBrowse
			m.mgr.Engine().SetSearchTerm("")
			m.cursor = 0
			m.sync()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if e := m.mgr.Engine(); m.search.Value() != e.SearchTerm() {
		e.SetSearchTerm(m.search.Value())
		m.cursor = 0
		m.sync()
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(k.String()) {
	case "y":
		m.gate.approve()
		m.mode = modeBrowse
		pending, target := m.pending, m.target
		m.pending, m.target = actionNone, ""
		if pending == actionDeleteOne {
			return m.start("Deleting", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
				return opDoneMsg{err: mgr.DeleteOne(ctx, target)}
			})
		}
		return m.start("Deleting", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
			_, err := mgr.DeleteSelected(ctx)
			return opDoneMsg{err: err}
		})
	case "n", "esc", "q":
		m.mode, m.pending, m.target = modeBrowse, actionNone, ""
	}
	return m, nil
}

func (m Model) updateNotice(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); !ok {
		return m, nil
	}
	if len(m.notices) > 0 {
		m.notices = m.notices[1:]
	}
	if len(m.notices) == 0 {
		m.mode = m.returnMode()
	}
	return m, nil
}

func (m Model) updateUpload(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd, result := m.form.update(msg)
	m.form = form

	switch result {
	case formCancel:
		m.mgr.SetForm(m.form.value())
		m.mgr.CloseUpload()
		m.mode = modeBrowse
		m.sync()
		return m, nil
	case formSubmit:
		value := m.form.value()
		return m.start("Uploading", func(ctx context.Context, mgr *manager.Manager) opDoneMsg {
			return opDoneMsg{err: mgr.Upload(ctx, value)}
		})
	}
	return m, cmd
}

// start marks the model busy and runs op as a command.
func (m Model) start(label string, op func(context.Context, *manager.Manager) opDoneMsg) (Model, tea.Cmd) {
	m.busy = true
	m.busyLabel = label
	m.status = ""
	ctx, mgr := m.ctx, m.mgr
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return op(ctx, mgr)
	})
}

// finish applies an operation result.
func (m Model) finish(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.busyLabel = ""

	if errors.Is(msg.err, manager.ErrSessionExpired) {
		m.expired = true
		return m.quit()
	}

	if m.mode == modeUpload && !m.mgr.UploadOpen() {
		m.mode = modeBrowse
	}
	if m.mode == modeUpload {
		m.form.setDevices(allDevices(m.mgr.Engine()))
	}
	if msg.err == nil {
		m.status = msg.status
	}

	if notices := m.inbox.drain(); len(notices) > 0 {
		m.notices = append(m.notices, notices...)
		m.mode = modeNotice
	}
	m.sync()

	if m.stale {
		m.stale = false
		return m.start("Refreshing", refreshOp(false))
	}
	return m, nil
}

func (m Model) notify(message string) Model {
	m.notices = append(m.notices, message)
	m.mode = modeNotice
	return m
}

// returnMode is where a dismissed notice goes back to.
func (m Model) returnMode() mode {
	if m.mgr.UploadOpen() {
		return modeUpload
	}
	return modeBrowse
}

// sync refreshes the snapshot from the engine.
func (m *Model) sync() {
	e := m.mgr.Engine()
	m.view = e.FilteredAndPaged()
	if m.cursor >= len(m.view.Rows) {
		m.cursor = len(m.view.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.selectedCount = len(e.Selection())
	m.projectLabel = optionLabel(e.ProjectOptions(), e.ProjectFilter(), "All Projects")
	m.deviceLabel = optionLabel(e.DeviceOptions(), e.DeviceFilter(), "All Devices")
	m.message = m.mgr.Message()
}

func (m Model) currentID() string {
	if m.cursor < 0 || m.cursor >= len(m.view.Rows) {
		return ""
	}
	return m.view.Rows[m.cursor].Firmware.ID
}

// nextOption cycles "" (all) → each option → "".
func nextOption(opts []listing.Option, current string) string {
	if current == "" {
		if len(opts) == 0 {
			return ""
		}
		return opts[0].Value
	}
	for i, o := range opts {
		if o.Value == current && i+1 < len(opts) {
			return opts[i+1].Value
		}
	}
	return ""
}

func optionLabel(opts []listing.Option, value, all string) string {
	if value == "" {
		return all
	}
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func allDevices(e *listing.Engine) []listing.Option {
	devices := e.Devices()
	opts := make([]listing.Option, 0, len(devices))
	for i := range devices {
		opts = append(opts, listing.Option{Value: devices[i].DeviceID, Label: devices[i].Label()})
	}
	return opts
}

func savedStatus(path string) string {
	if path == "" {
		return ""
	}
	return "Saved " + path
}

// View renders the dashboard
func (m Model) View() string {
	switch {
	case m.mode == modeNotice && len(m.notices) > 0:
		return renderModal(
			ui.ErrorTitleStyle.Render(ui.FailureMarker+"  "+m.notices[0])+"\n\n"+
				LabelStyle.Render("press any key"),
			m.width, m.height)
	case m.mode == modeConfirm:
		return renderModal(
			lipgloss.NewStyle().Foreground(ui.WarningColor).Bold(true).Render("⚠  "+m.prompt)+"\n\n"+
				LabelStyle.Render("y confirm · n cancel"),
			m.width, m.height)
	}

	var b strings.Builder

	if m.mode == modeUpload {
		b.WriteString(m.form.view(m.message))
		b.WriteString("\n")
		b.WriteString(m.busyLine())
		return renderContainer(b.String(), m.help.View(m.form.keys), m.backendURL, m.user, m.width, m.height)
	}

	b.WriteString(m.filterLine())
	b.WriteString("\n\n")

	cursor := m.cursor
	if len(m.view.Rows) == 0 {
		cursor = -1
	}
	b.WriteString(ui.RenderFirmwareTable(m.view, ui.TableOptions{
		Width:      m.width - 6,
		Cursor:     cursor,
		Selectable: true,
	}))
	b.WriteString("\n")
	if caption := ui.RenderPagination(m.view); caption != "" {
		b.WriteString(caption)
		b.WriteString("\n")
	}
	b.WriteString(LabelStyle.Render(fmt.Sprintf("  %d selected", m.selectedCount)))
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(ui.MessageStyle.Render("  " + m.message))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StatusStyle.Render("  " + ui.SuccessMarker + " " + m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.busyLine())

	return renderContainer(b.String(), m.help.View(m.keys), m.backendURL, m.user, m.width, m.height)
}

func (m Model) filterLine() string {
	search := m.search.View()
	if m.mode != modeSearch && m.search.Value() == "" {
		search = LabelStyle.Render("/ search")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ", search,
		"   ", LabelStyle.Render("Project: "), ValueStyle.Render(m.projectLabel),
		"   ", LabelStyle.Render("Device: "), ValueStyle.Render(m.deviceLabel),
	)
}

func (m Model) busyLine() string {
	if !m.busy {
		return ""
	}
	return "\n  " + m.spinner.View() + " " + m.busyLabel + "..."
}
