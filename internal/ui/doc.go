// Package ui provides terminal output components for the espfw CLI.
//
// Commands that run once and exit (list, upload, download, delete, export)
// render through this package with Lipgloss: a command Header, a per-item
// Progress for bulk runs, and a Result box. The interactive dashboard
// reuses the same styles and the firmware table renderer.
//
// # Bulk runs
//
// Runner drives the header, progress and result flow. Its OnItem method is
// passed to the manager as the per-item hook so every settled download or
// delete prints a line as it completes:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Bulk Download",
//	    Command: "espfw download",
//	    IDs:     ids,
//	})
//	mgr := manager.New(manager.Options{OnItem: runner.OnItem, ...})
//	report, err := runner.Run(ctx, mgr.DownloadSelected)
//
// # Logging
//
// zap logging is silent unless ESPFW_LOG_LEVEL is set, so the curated
// output here is displayed cleanly.
package ui
