// Package manager is the firmware screen controller. It owns the list
// engine and runs every user operation against the backend: refresh,
// upload, single and bulk delete, single and bulk download, and export.
//
// The host (CLI or dashboard) supplies the collaborators the screen needs:
// a Confirmer for destructive actions, a Notifier for blocking notices, a
// Saver for produced files and a Session that handles an expired token.
// Operation errors are also kept as a transient Message for display.
package manager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/bulk"
	"github.com/muurk/espfw/internal/export"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/models"
)

// User-facing messages.
const (
	MsgFetchFailed        = "Failed to fetch firmwares"
	MsgDeleteFailed       = "Failed to delete firmware"
	MsgBulkDeleteFailed   = "Failed to delete selected firmwares"
	MsgNoSelection        = "No firmware selected"
	MsgExportFailed       = "Failed to export firmware data"
	PromptDeleteOne       = "Delete this firmware?"
	PromptDeleteSelected  = "Delete all selected firmwares?"
	uploadFailedPrefix    = "Upload failed: "
	downloadFailedPrefix  = "Download failed for "
	defaultUploadFailText = "Failed to upload firmware"
)

var (
	// ErrCanceled is returned when the user declines a confirmation.
	ErrCanceled = errors.New("canceled")

	// ErrNoSelection is returned by bulk operations on an empty selection.
	ErrNoSelection = errors.New("no firmware selected")

	// ErrSessionExpired is returned by Refresh when the backend rejected the
	// session token. The session has already been cleared.
	ErrSessionExpired = errors.New("session expired")
)

// Backend is the subset of *backend.Client the screen uses.
type Backend interface {
	ListFirmwares(ctx context.Context) ([]models.Firmware, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	Upload(ctx context.Context, up backend.UploadRequest) (*models.Firmware, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
	Delete(ctx context.Context, id string) error
}

// Session expires the stored login when err is an authentication failure
// and reports whether it did. *session.Guard implements it.
type Session interface {
	Check(err error) bool
}

// UploadForm is the state of the upload dialog.
type UploadForm struct {
	Version     string
	Description string
	EspID       string
	FilePath    string
}

// Options configures a Manager.
type Options struct {
	Client    Backend
	Session   Session
	Confirmer Confirmer
	Notifier  Notifier
	Saver     Saver

	// Exports receives spreadsheets. Saver is used when nil.
	Exports Saver

	// BaseURL is written into exported download links.
	BaseURL string

	// Concurrency bounds bulk operations; values < 1 mean sequential.
	Concurrency int

	Locale locale.Locale

	// OnItem, when set, is called as each bulk item settles.
	OnItem func(operation string, res bulk.Result)
}

// Manager is the screen controller. Its methods must be called from one
// goroutine at a time.
type Manager struct {
	engine *listing.Engine
	opts   Options

	mu         sync.Mutex
	message    string
	loading    bool
	form       UploadForm
	uploadOpen bool
}

// New creates a Manager with an empty engine.
func New(opts Options) *Manager {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Confirmer == nil {
		opts.Confirmer = ConfirmFunc(func(string) bool { return false })
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifyFunc(func(string) {})
	}
	if opts.Saver == nil {
		opts.Saver = DirSaver{Dir: "."}
	}
	if opts.Exports == nil {
		opts.Exports = opts.Saver
	}
	return &Manager{
		engine: listing.New(opts.Locale),
		opts:   opts,
	}
}

// Engine returns the list state engine.
func (m *Manager) Engine() *listing.Engine { return m.engine }

// Message returns the current transient error text.
func (m *Manager) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// ClearMessage dismisses the transient error text.
func (m *Manager) ClearMessage() { m.setMessage("") }

// Loading reports whether an operation is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *Manager) setMessage(msg string) {
	m.mu.Lock()
	m.message = msg
	m.mu.Unlock()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// begin marks an operation as started and clears the previous message.
func (m *Manager) begin() {
	m.mu.Lock()
	m.loading = true
	m.message = ""
	m.mu.Unlock()
}

// fail ends an operation with a message.
func (m *Manager) fail(msg string) {
	m.mu.Lock()
	m.loading = false
	m.message = msg
	m.mu.Unlock()
}

// Refresh fetches firmwares, devices and projects concurrently and applies
// the results. A firmware failure sets MsgFetchFailed and keeps the old
// list. A rejected token on the device or project fetch expires the session
// and returns ErrSessionExpired. A failed project fetch yields an empty list.
func (m *Manager) Refresh(ctx context.Context) error {
	m.begin()

	var (
		firmwares            []models.Firmware
		devices              []models.Device
		projects             []models.Project
		fwErr, devErr, prErr error
		wg                   sync.WaitGroup
	)
	// Each fetch fails independently; one failure must not cancel the others.
	wg.Add(3)
	go func() {
		defer wg.Done()
		firmwares, fwErr = m.opts.Client.ListFirmwares(ctx)
	}()
	go func() {
		defer wg.Done()
		devices, devErr = m.opts.Client.ListDevices(ctx)
	}()
	go func() {
		defer wg.Done()
		projects, prErr = m.opts.Client.ListProjects(ctx)
	}()
	wg.Wait()

	if m.sessionRejected(devErr) || m.sessionRejected(prErr) {
		m.setLoading(false)
		return ErrSessionExpired
	}

	if prErr != nil {
		logging.Warn("Project fetch failed", zap.Error(prErr))
		projects = []models.Project{}
	}
	m.engine.SetProjects(projects)

	switch {
	case devErr == nil:
		m.engine.SetDevices(devices)
	case backend.IsHTTPError(devErr):
		// An error payload is not a device list.
		logging.Warn("Device fetch failed", zap.Error(devErr))
		m.engine.SetDevices([]models.Device{})
	default:
		logging.Warn("Device fetch failed, keeping previous list", zap.Error(devErr))
	}

	if fwErr != nil {
		logging.Warn("Firmware fetch failed", zap.Error(fwErr))
		m.fail(MsgFetchFailed)
		return fwErr
	}
	m.engine.SetFirmwares(firmwares)
	m.setLoading(false)
	return nil
}

// sessionRejected reports whether err was an authentication failure that
// expired the session.
func (m *Manager) sessionRejected(err error) bool {
	return err != nil && m.opts.Session != nil && m.opts.Session.Check(err)
}

// RefreshFirmwares re-fetches only the firmware list.
func (m *Manager) RefreshFirmwares(ctx context.Context) error {
	m.begin()
	firmwares, err := m.opts.Client.ListFirmwares(ctx)
	if err != nil {
		logging.Warn("Firmware fetch failed", zap.Error(err))
		m.fail(MsgFetchFailed)
		return err
	}
	m.engine.SetFirmwares(firmwares)
	m.setLoading(false)
	return nil
}

// OpenUpload shows the upload form with its current contents.
func (m *Manager) OpenUpload() {
	m.mu.Lock()
	m.uploadOpen = true
	m.mu.Unlock()
}

// CloseUpload hides the upload form. Its contents are kept.
func (m *Manager) CloseUpload() {
	m.mu.Lock()
	m.uploadOpen = false
	m.mu.Unlock()
}

// UploadOpen reports whether the upload form is shown.
func (m *Manager) UploadOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadOpen
}

// Form returns the upload form contents.
func (m *Manager) Form() UploadForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// SetForm replaces the upload form contents.
func (m *Manager) SetForm(form UploadForm) {
	m.mu.Lock()
	m.form = form
	m.mu.Unlock()
}

// Upload sends the form as is; nothing is validated locally. On success the
// form is reset and closed and the firmware list refreshed. On failure the
// form keeps its contents and Message reads "Upload failed: <reason>".
func (m *Manager) Upload(ctx context.Context, form UploadForm) error {
	m.SetForm(form)
	m.begin()

	req := backend.UploadRequest{
		Version:     form.Version,
		Description: form.Description,
		EspID:       form.EspID,
	}
	if form.FilePath != "" {
		file, err := os.Open(form.FilePath)
		if err != nil {
			m.fail(uploadFailedPrefix + err.Error())
			return err
		}
		defer file.Close()
		req.File = file
		req.FileName = filepath.Base(form.FilePath)
	}

	created, err := m.opts.Client.Upload(ctx, req)
	if err != nil {
		reason := backend.ShortMessage(err)
		if reason == "" {
			reason = defaultUploadFailText
		}
		m.fail(uploadFailedPrefix + reason)
		return err
	}

	if created != nil {
		logging.Info("Firmware uploaded",
			zap.String("firmware_id", created.ID),
			zap.String("esp_id", created.EspID),
		)
	}
	m.mu.Lock()
	m.form = UploadForm{}
	m.uploadOpen = false
	m.mu.Unlock()

	return m.RefreshFirmwares(ctx)
}

// DeleteOne deletes a firmware after confirmation and refreshes the list.
func (m *Manager) DeleteOne(ctx context.Context, id string) error {
	if !m.opts.Confirmer.Confirm(PromptDeleteOne) {
		return ErrCanceled
	}
	m.begin()

	err := m.opts.Client.Delete(ctx, id)
	logging.LogBulkItem("delete", id, err)
	if err != nil {
		m.fail(MsgDeleteFailed)
		return err
	}
	return m.RefreshFirmwares(ctx)
}

// DeleteSelected deletes every selected firmware after one confirmation.
// The first failure stops the run: remaining ids are not attempted, the
// selection is kept and the list is not refreshed. On success the
// selection is cleared and the list refreshed.
func (m *Manager) DeleteSelected(ctx context.Context) (*bulk.Report, error) {
	ids := m.engine.Selection()
	if len(ids) == 0 {
		m.opts.Notifier.Notify(MsgNoSelection)
		return nil, ErrNoSelection
	}
	if !m.opts.Confirmer.Confirm(PromptDeleteSelected) {
		return nil, ErrCanceled
	}
	m.begin()

	report := bulk.Run(ctx, ids,
		bulk.Options{Concurrency: m.opts.Concurrency, StopOnError: true},
		m.opts.Client.Delete,
		m.itemHook("delete"),
	)
	if err := report.Err(); err != nil {
		m.fail(MsgBulkDeleteFailed)
		return report, err
	}

	m.engine.ClearSelection()
	return report, m.RefreshFirmwares(ctx)
}

// DownloadSelected saves every selected firmware under its stored file
// name. A failure raises a notice naming the item and the run continues.
// The selection is left as is.
func (m *Manager) DownloadSelected(ctx context.Context) (*bulk.Report, error) {
	ids := m.engine.Selection()
	if len(ids) == 0 {
		m.opts.Notifier.Notify(MsgNoSelection)
		return nil, ErrNoSelection
	}

	firmwares := m.engine.Firmwares()
	hook := m.itemHook("download")
	report := bulk.Run(ctx, ids,
		bulk.Options{Concurrency: m.opts.Concurrency},
		func(ctx context.Context, id string) error {
			name := models.DefaultFileName
			if fw := models.FindFirmware(firmwares, id); fw != nil {
				name = fw.SaveName()
			}
			_, err := m.save(ctx, id, name)
			return err
		},
		func(res bulk.Result) {
			hook(res)
			if res.Err != nil {
				label := res.ID
				if fw := models.FindFirmware(firmwares, res.ID); fw != nil && fw.FileName != "" {
					label = fw.FileName
				}
				m.opts.Notifier.Notify(downloadFailedPrefix + label)
			}
		},
	)
	return report, report.Err()
}

// DownloadOne saves a single firmware under its original file name and
// returns the path written.
func (m *Manager) DownloadOne(ctx context.Context, firmwareID string) (string, error) {
	name, label := models.DefaultFileName, firmwareID
	if fw := models.FindFirmware(m.engine.Firmwares(), firmwareID); fw != nil {
		name = fw.DisplayFileName()
		switch {
		case fw.OriginalFileName != "":
			label = fw.OriginalFileName
		case fw.FileName != "":
			label = fw.FileName
		}
	}

	path, err := m.save(ctx, firmwareID, name)
	logging.LogBulkItem("download", firmwareID, err)
	if err != nil {
		m.opts.Notifier.Notify(downloadFailedPrefix + label)
		return "", err
	}
	return path, nil
}

// ExportInput captures the current collections and filters for export.
func (m *Manager) ExportInput() export.Input {
	e := m.engine
	return export.Input{
		Firmwares:     e.Firmwares(),
		Devices:       e.Devices(),
		Projects:      e.Projects(),
		ProjectID:     e.ProjectFilter(),
		DeviceID:      e.DeviceFilter(),
		Search:        e.SearchTerm(),
		FilteredCount: len(e.Filtered()),
		BaseURL:       m.opts.BaseURL,
		Locale:        e.Locale(),
	}
}

// Export builds the workbook for the current filters and saves it.
func (m *Manager) Export(now time.Time) (string, error) {
	wb := export.Build(m.ExportInput(), now)
	path, err := m.opts.Exports.Save(wb.Name, wb.Write)
	if err != nil {
		logging.Error("Export failed", zap.Error(err))
		m.setMessage(MsgExportFailed)
		return "", err
	}
	logging.Info("Export saved", zap.String("path", path))
	return path, nil
}

func (m *Manager) save(ctx context.Context, firmwareID, name string) (string, error) {
	return m.opts.Saver.Save(name, func(w io.Writer) error {
		_, err := m.opts.Client.Download(ctx, firmwareID, w)
		return err
	})
}

func (m *Manager) itemHook(operation string) func(bulk.Result) {
	return func(res bulk.Result) {
		logging.LogBulkItem(operation, res.ID, res.Err)
		if m.opts.OnItem != nil {
			m.opts.OnItem(operation, res)
		}
	}
}
