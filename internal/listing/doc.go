// Package listing implements the list state engine behind the firmware
// management screen.
//
// An Engine owns three source collections (firmwares, devices, projects) and
// the view state: search term, project filter, device filter, page number
// and the selection set. Everything shown to the user is derived on demand
// by pure functions over those inputs, so a derived row set can never go
// stale relative to the collections.
//
// # Filtering
//
// The visible rows are the firmwares that match the search term and, when a
// device filter is set, belong to that device. The project filter narrows
// the device options offered for the device filter; changing it clears the
// device filter.
//
// # Selection
//
// The selection set is independent of pagination and filtering. It may hold
// ids that are not visible, and bulk operations act on the whole set.
//
// # Pagination
//
// Pages hold PageSize rows. An out-of-range page request is ignored, and
// replacing the firmware collection pulls the current page back into range.
package listing
