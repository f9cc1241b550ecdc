package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/bulk"
	"github.com/muurk/espfw/internal/dashboard"
	"github.com/muurk/espfw/internal/export"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/manager"
	"github.com/muurk/espfw/internal/ui"
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
}

// dashboardCmd launches the TUI; it is also the root default.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive firmware dashboard",
	Long: `Open the interactive firmware dashboard.

Keys: j/k move, h/l change page, space selects, a selects the page,
/ searches, p and f cycle the project and device filters, d downloads,
x deletes, u uploads, e exports, r refreshes, ? shows all keys.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return fmt.Errorf("the dashboard needs a terminal; use 'espfw list' instead")
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if !a.guard.LoggedIn() {
		return errNotLoggedIn
	}

	user := ""
	if u := a.guard.User(); u != nil {
		user = u.Email
	}
	final, err := dashboard.Run(dashboard.Options{
		Manager:    a.managerOptions(),
		Watcher:    a.client,
		BackendURL: a.settings.BackendURL,
		User:       user,
	})
	if err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	if final.SessionExpired() {
		return errSessionExpired
	}
	return nil
}

var (
	listFilters filterFlags
	listPage    int
	listAll     bool
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List firmwares",
	Long: `List firmwares five per page, newest order as returned by the backend.

--search matches the version, the device name or the upload date as shown.
--device narrows to one device; --project only limits which devices
--device accepts.`,
	Example: `  # First page
  espfw list

  # Second page of one device's firmware
  espfw list --device esp-01 --page 2

  # Everything matching a search, as JSON
  espfw list --search 1.2 --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listFilters.register(listCmd, true)
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page to show")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Print every page")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the filtered records as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	mgr := manager.New(a.managerOptions())
	if err := a.load(cmd.Context(), mgr); err != nil {
		return err
	}
	e := mgr.Engine()
	if err := listFilters.apply(e); err != nil {
		return err
	}

	if listJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(e.Filtered())
	}

	if listPage != 1 && !e.SetPage(listPage) {
		return fmt.Errorf("page %d out of range (1-%d)", listPage, listing.TotalPages(len(e.Filtered())))
	}
	p := ui.NewPrinter(a.out)
	p.PrintTable(e.FilteredAndPaged())
	for listAll && e.NextPage() {
		p.Newline()
		p.PrintTable(e.FilteredAndPaged())
	}
	return nil
}

var (
	uploadVersion     string
	uploadDescription string
	uploadDevice      string
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a firmware binary",
	Long: `Upload a firmware binary with its version, description and target device.

Fields are sent as given; the backend decides what is valid.`,
	Example: `  espfw upload build/app.bin --version 1.4.0 --device esp-01 --description "fix watchdog"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadVersion, "version", "", "Firmware version")
	uploadCmd.Flags().StringVar(&uploadDescription, "description", "", "Free-text description")
	uploadCmd.Flags().StringVar(&uploadDevice, "device", "", "Target device identifier (esp_id)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	mgr := manager.New(a.managerOptions())
	p := ui.NewPrinter(a.out)

	path := args[0]
	p.PrintHeader("Upload Firmware", "espfw upload",
		ui.Param{Key: "File", Value: path},
		ui.Param{Key: "Version", Value: orDash(uploadVersion)},
		ui.Param{Key: "Device", Value: orDash(uploadDevice)},
		ui.Param{Key: "Backend", Value: a.settings.BackendURL},
	)
	p.PrintPleaseWait("Uploading")

	err = mgr.Upload(cmd.Context(), manager.UploadForm{
		Version:     uploadVersion,
		Description: uploadDescription,
		EspID:       uploadDevice,
		FilePath:    path,
	})
	if err != nil {
		p.Newline()
		msg := mgr.Message()
		if msg == "" {
			// the upload itself succeeded; only the refresh failed
			msg = manager.MsgFetchFailed
		}
		p.PrintError(msg, err, hints(err))
		return reportedError{err}
	}

	p.Newline()
	p.PrintSuccess("Upload complete",
		ui.Param{Key: "File", Value: filepath.Base(path)},
		ui.Param{Key: "Version", Value: orDash(uploadVersion)},
		ui.Param{Key: "Firmwares", Value: strconv.Itoa(len(mgr.Engine().Firmwares()))},
	)
	return nil
}

var (
	downloadFilters filterFlags
	downloadAll     bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [ID...]",
	Short: "Download firmware binaries",
	Long: `Download firmware binaries into the download directory.

A single id is saved under its original file name. Several ids (or --all)
are saved under their stored file names; a failed item is reported and the
rest continue. Existing files are never overwritten.`,
	Example: `  # One firmware
  espfw download 65a4c2e0

  # Every firmware of a device
  espfw download --all --device esp-01`,
	RunE: runDownload,
}

func init() {
	downloadFilters.register(downloadCmd, true)
	downloadCmd.Flags().BoolVar(&downloadAll, "all", false, "Download every firmware matching the filters")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if !downloadAll && (downloadFilters != filterFlags{}) {
		return fmt.Errorf("--search, --project and --device require --all")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	prompter := &ui.Prompter{In: stdin, Out: a.out}
	var runner *ui.Runner
	opts := a.managerOptions()
	opts.Notifier = prompter
	opts.OnItem = func(op string, res bulk.Result) {
		if runner != nil {
			runner.OnItem(op, res)
		}
	}
	mgr := manager.New(opts)
	ctx := cmd.Context()
	if err := a.load(ctx, mgr); err != nil {
		return err
	}
	e := mgr.Engine()

	ids := args
	if downloadAll {
		if err := downloadFilters.apply(e); err != nil {
			return err
		}
		for _, fw := range e.Filtered() {
			ids = append(ids, fw.ID)
		}
	}
	if len(ids) == 0 {
		return errNothingSelected
	}
	if err := selectIDs(e, ids); err != nil {
		return err
	}

	p := ui.NewPrinter(a.out)
	if len(ids) == 1 && !downloadAll {
		path, err := mgr.DownloadOne(ctx, ids[0])
		if err != nil {
			return reportedError{err}
		}
		p.PrintSuccess("Download complete", ui.Param{Key: "Saved", Value: path})
		return nil
	}

	runner = ui.NewRunner(ui.RunnerConfig{
		Title:   "Bulk Download",
		Command: "espfw download",
		Params: []ui.Param{
			{Key: "Items", Value: strconv.Itoa(len(ids))},
			{Key: "Directory", Value: a.settings.DownloadDir},
		},
		IDs:    e.Selection(),
		Names:  displayNames(e.Firmwares(), ids),
		Output: a.out,
		Hints:  hints,
	})
	_, err = runner.Run(ctx, func(ctx context.Context) (*bulk.Report, error) {
		return mgr.DownloadSelected(ctx)
	})
	if err != nil {
		return reportedError{err}
	}
	return nil
}

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete firmwares",
	Long: `Delete firmwares after confirmation.

With several ids the first failure stops the run; the remaining ids are
not attempted.`,
	Example: `  espfw delete 65a4c2e0
  espfw delete 65a4c2e0 65a4c2e1 --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	prompter := &ui.Prompter{In: stdin, Out: a.out, AssumeYes: deleteYes}

	approved := false
	var runner *ui.Runner
	opts := a.managerOptions()
	opts.Notifier = prompter
	opts.Confirmer = manager.ConfirmFunc(func(prompt string) bool {
		return approved || prompter.Confirm(prompt)
	})
	opts.OnItem = func(op string, res bulk.Result) {
		if runner != nil {
			runner.OnItem(op, res)
		}
	}
	mgr := manager.New(opts)
	ctx := cmd.Context()
	if err := a.load(ctx, mgr); err != nil {
		return err
	}
	e := mgr.Engine()
	if err := selectIDs(e, args); err != nil {
		return err
	}
	ids := e.Selection()
	names := displayNames(e.Firmwares(), ids)
	for _, id := range ids {
		prompter.Items = append(prompter.Items, id+"  "+names[id])
	}

	p := ui.NewPrinter(a.out)
	if len(ids) == 1 {
		err := mgr.DeleteOne(ctx, ids[0])
		switch {
		case errors.Is(err, manager.ErrCanceled):
			return nil
		case err != nil && mgr.Message() != "":
			return fmt.Errorf("%s: %s", mgr.Message(), backend.ShortMessage(err))
		case err != nil:
			return fmt.Errorf("firmware deleted but the list could not be refreshed: %w", err)
		}
		p.PrintSuccess("Firmware deleted", ui.Param{Key: "ID", Value: ids[0]})
		return nil
	}

	if !prompter.Confirm(manager.PromptDeleteSelected) {
		return nil
	}
	approved = true

	runner = ui.NewRunner(ui.RunnerConfig{
		Title:   "Bulk Delete",
		Command: "espfw delete",
		Params:  []ui.Param{{Key: "Items", Value: strconv.Itoa(len(ids))}},
		IDs:     ids,
		Names:   names,
		Output:  a.out,
		Hints:   hints,
	})
	_, err = runner.Run(ctx, func(ctx context.Context) (*bulk.Report, error) {
		return mgr.DeleteSelected(ctx)
	})
	if err != nil {
		return reportedError{err}
	}
	return nil
}

var exportFilters filterFlags

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export firmware data to a spreadsheet",
	Long: `Write an .xlsx workbook with Summary, Firmwares and Devices sheets.

The export covers every firmware of the selected project or device. The
search term is recorded in the summary but does not narrow the rows.`,
	Example: `  espfw export --project "Plant A"
  espfw export --device esp-01 --export-dir ./reports`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportFilters.register(exportCmd, true)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	mgr := manager.New(a.managerOptions())
	if err := a.load(cmd.Context(), mgr); err != nil {
		return err
	}
	if err := exportFilters.apply(mgr.Engine()); err != nil {
		return err
	}

	firmwares, devices := export.Scope(mgr.ExportInput())
	path, err := mgr.Export(time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", manager.MsgExportFailed, err)
	}

	ui.NewPrinter(a.out).PrintSuccess("Export complete",
		ui.Param{Key: "File", Value: path},
		ui.Param{Key: "Firmwares", Value: strconv.Itoa(len(firmwares))},
		ui.Param{Key: "Devices", Value: strconv.Itoa(len(devices))},
		ui.Param{Key: "Note", Value: export.ScopeNote},
	)
	return nil
}
