package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/config"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/manager"
	"github.com/muurk/espfw/internal/models"
	"github.com/muurk/espfw/internal/session"
)

var (
	errNotLoggedIn     = errors.New("not logged in, run 'espfw login' first")
	errSessionExpired  = errors.New("session expired, log in again with 'espfw login'")
	errNothingSelected = errors.New(manager.MsgNoSelection)
)

// app is the per-invocation context shared by every command.
type app struct {
	registry *config.Registry
	settings config.Settings
	guard    *session.Guard
	client   *backend.Client
	locale   locale.Locale
	out      io.Writer
}

// newApp loads config and session and applies the global flags.
func newApp(cmd *cobra.Command) (*app, error) {
	if err := logging.Initialize(flagLogLevel); err != nil {
		return nil, err
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settings := registry.Settings
	applyFlags(cmd, &settings)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := locale.Lookup(settings.Locale, settings.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := session.DefaultStore()
	if err != nil {
		return nil, err
	}
	guard, err := session.NewGuard(store, func() {
		logging.Warn("Backend rejected the session token; session cleared")
	})
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(settings.BackendURL, guard)
	client.SetTimeout(settings.Timeout())
	client.SetRetry(settings.MaxRetries, backend.DefaultRetryDelay)

	logging.Debug("Configuration resolved",
		zap.String("backend_url", settings.BackendURL),
		zap.String("locale", loc.Tag),
		zap.Int("bulk_concurrency", settings.BulkConcurrency),
	)

	return &app{
		registry: registry,
		settings: settings,
		guard:    guard,
		client:   client,
		locale:   loc,
		out:      cmd.OutOrStdout(),
	}, nil
}

// applyFlags overrides settings with the global flags the user set.
func applyFlags(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		s.BackendURL = strings.TrimRight(flagBackendURL, "/")
	}
	if flags.Changed("locale") {
		s.Locale = flagLocale
	}
	if flags.Changed("timezone") {
		s.Timezone = flagTimezone
	}
	if flags.Changed("timeout") {
		s.TimeoutSeconds = flagTimeout
	}
	if flags.Changed("concurrency") {
		s.BulkConcurrency = flagConcurrency
	}
	if flags.Changed("download-dir") {
		s.DownloadDir = flagDownloadDir
	}
	if flags.Changed("export-dir") {
		s.ExportDir = flagExportDir
	}
}

// managerOptions wires the manager to this app's backend and directories.
func (a *app) managerOptions() manager.Options {
	return manager.Options{
		Client:      a.client,
		Session:     a.guard,
		Saver:       manager.DirSaver{Dir: a.settings.DownloadDir},
		Exports:     manager.DirSaver{Dir: a.settings.ExportDir},
		BaseURL:     a.settings.BackendURL,
		Concurrency: a.settings.BulkConcurrency,
		Locale:      a.locale,
	}
}

// load refreshes every collection into mgr.
func (a *app) load(ctx context.Context, mgr *manager.Manager) error {
	if !a.guard.LoggedIn() {
		return errNotLoggedIn
	}
	err := mgr.Refresh(ctx)
	switch {
	case errors.Is(err, manager.ErrSessionExpired):
		return errSessionExpired
	case err != nil:
		return fmt.Errorf("%s: %s", manager.MsgFetchFailed, backend.ShortMessage(err))
	}
	return nil
}

// hints splits the backend troubleshooting text into bullet lines.
func hints(err error) []string {
	var out []string
	for _, line := range strings.Split(backend.TroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// filterFlags are the list filters shared by list, download and export.
type filterFlags struct {
	search  string
	project string
	device  string
}

func (f *filterFlags) register(cmd *cobra.Command, withSearch bool) {
	if withSearch {
		cmd.Flags().StringVar(&f.search, "search", "", "Match version, device name or upload date")
	}
	cmd.Flags().StringVar(&f.project, "project", "", "Project id or name")
	cmd.Flags().StringVar(&f.device, "device", "", "Device identifier (esp_id)")
}

// apply sets the filters on e. Projects match by id, then by name
// ignoring case. Devices must belong to the selected project.
func (f filterFlags) apply(e *listing.Engine) error {
	if f.project != "" {
		id, err := resolveProject(e.Projects(), f.project)
		if err != nil {
			return err
		}
		e.SetProjectFilter(id)
	}
	if f.device != "" {
		found := false
		for _, opt := range e.DeviceOptions() {
			if opt.Value == f.device {
				found = true
				break
			}
		}
		if !found {
			if e.ProjectFilter() != "" {
				return fmt.Errorf("device %q is not in the selected project", f.device)
			}
			return fmt.Errorf("unknown device %q", f.device)
		}
		e.SetDeviceFilter(f.device)
	}
	if f.search != "" {
		e.SetSearchTerm(f.search)
	}
	return nil
}

func resolveProject(projects []models.Project, ref string) (string, error) {
	if p := models.FindProject(projects, ref); p != nil {
		return p.ID, nil
	}
	for _, p := range projects {
		if strings.EqualFold(p.ProjectName, ref) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("unknown project %q", ref)
}

// selectIDs puts ids into the selection in the given order. Unknown ids
// are rejected before anything runs.
func selectIDs(e *listing.Engine, ids []string) error {
	var unknown []string
	for _, id := range ids {
		if models.FindFirmware(e.Firmwares(), id) == nil {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown firmware id(s): %s", strings.Join(unknown, ", "))
	}
	for _, id := range ids {
		if !e.IsSelected(id) {
			e.ToggleRowSelection(id)
		}
	}
	return nil
}

// displayNames maps firmware ids to "version (file)" for progress output.
func displayNames(firmwares []models.Firmware, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if fw := models.FindFirmware(firmwares, id); fw != nil {
			names[id] = fmt.Sprintf("%s (%s)", orDash(fw.Version), fw.DisplayFileName())
		}
	}
	return names
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin
