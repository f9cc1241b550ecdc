// Package urls holds the REST paths of the firmware backend.
//
// The same constants are used by the HTTP client, the development server's
// router and the spreadsheet export, so a path only ever changes here.
package urls
