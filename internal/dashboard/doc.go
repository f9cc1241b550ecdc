// Package dashboard is the interactive firmware screen: a Bubble Tea
// program over the list engine and the manager.
//
// The screen shows a search box, project and device pickers, one page of
// firmwares with checkboxes, and the pagination caption. Keys drive
// selection, bulk and single download, delete with confirmation, the upload
// form and spreadsheet export. Blocking notices (for example
// "Download failed for app.bin") are shown one at a time as modals.
//
// # Concurrency
//
// Every backend call runs as a tea.Cmd while the model is busy. Key input
// other than quit is ignored until the result message arrives, so the
// engine is never read by View while a command mutates it.
//
// # Live updates
//
// When a Watcher is configured, each change feed event refreshes the
// firmware list. Events arriving during another operation are folded into
// a single refresh once it finishes.
//
// # Session expiry
//
// A 401 from the device list ends the program; SessionExpired reports it so
// the caller can ask the user to log in again.
package dashboard
