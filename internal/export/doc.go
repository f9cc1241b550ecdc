// Package export turns the firmware, device and project collections into a
// three-sheet spreadsheet workbook.
//
// The workbook is scoped by the project and device filters only. The free
// text search and the current page never narrow an export; the summary sheet
// records both counts so a reader can tell the export scope from the view.
//
// Build is pure apart from the export timestamp passed in by the caller.
// Write and Save serialise a workbook to xlsx.
package export
