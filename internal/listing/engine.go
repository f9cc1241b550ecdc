package listing

import (
	"fmt"

	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/models"
)

// PageSize is the number of firmware rows per page.
const PageSize = 5

// Option is an entry of a project or device picker.
type Option struct {
	Value string
	Label string
}

// Row is one rendered firmware row.
type Row struct {
	Firmware   models.Firmware
	DeviceName string // Device display name, or the raw esp_id when the device is unknown
	Uploaded   string // Locale date, empty when the firmware has no upload timestamp
	Selected   bool
}

// View is the derived, paginated projection of the engine state.
type View struct {
	Rows          []Row
	Page          int
	TotalPages    int
	FilteredCount int
	First         int // 1-based index of the first visible row, 0 when empty
	Last          int // 1-based index of the last visible row, 0 when empty
}

// Empty reports whether no rows are visible.
func (v View) Empty() bool {
	return len(v.Rows) == 0
}

// AllVisibleSelected drives the header checkbox: true only when at least
// one row is visible and every visible row is selected.
func (v View) AllVisibleSelected() bool {
	if len(v.Rows) == 0 {
		return false
	}
	for _, r := range v.Rows {
		if !r.Selected {
			return false
		}
	}
	return true
}

// CanPrev reports whether the previous-page control is enabled.
func (v View) CanPrev() bool {
	return v.Page > 1
}

// CanNext reports whether the next-page control is enabled.
func (v View) CanNext() bool {
	return v.Page < v.TotalPages
}

// Summary renders the pagination caption.
func (v View) Summary() string {
	return fmt.Sprintf("Showing %d to %d of %d results", v.First, v.Last, v.FilteredCount)
}

// Engine holds the source collections and view state of the firmware screen.
// It is not safe for concurrent use; callers confine it to one goroutine.
type Engine struct {
	locale locale.Locale

	firmwares []models.Firmware
	devices   []models.Device
	projects  []models.Project

	search        string
	projectFilter string
	deviceFilter  string
	page          int

	selection []string // insertion-ordered set
}

// New creates an empty engine rendering dates with loc.
func New(loc locale.Locale) *Engine {
	return &Engine{
		locale:    loc,
		firmwares: []models.Firmware{},
		devices:   []models.Device{},
		projects:  []models.Project{},
		page:      1,
	}
}

// Locale returns the date rendering profile.
func (e *Engine) Locale() locale.Locale { return e.locale }

// Firmwares returns the firmware collection in received order.
func (e *Engine) Firmwares() []models.Firmware { return e.firmwares }

// Devices returns the device collection.
func (e *Engine) Devices() []models.Device { return e.devices }

// Projects returns the project collection.
func (e *Engine) Projects() []models.Project { return e.projects }

// SearchTerm returns the current search term.
func (e *Engine) SearchTerm() string { return e.search }

// ProjectFilter returns the selected project id, or "" for none.
func (e *Engine) ProjectFilter() string { return e.projectFilter }

// DeviceFilter returns the selected device identifier, or "" for none.
func (e *Engine) DeviceFilter() string { return e.deviceFilter }

// Page returns the current 1-based page number.
func (e *Engine) Page() int { return e.page }

// SetFirmwares replaces the firmware collection.
func (e *Engine) SetFirmwares(firmwares []models.Firmware) {
	if firmwares == nil {
		firmwares = []models.Firmware{}
	}
	e.firmwares = firmwares
	e.clampPage()
}

// SetDevices replaces the device collection.
func (e *Engine) SetDevices(devices []models.Device) {
	if devices == nil {
		devices = []models.Device{}
	}
	e.devices = devices
	e.clampPage()
}

// SetProjects replaces the project collection.
func (e *Engine) SetProjects(projects []models.Project) {
	if projects == nil {
		projects = []models.Project{}
	}
	e.projects = projects
}

// SetCollections replaces all three collections at once.
func (e *Engine) SetCollections(firmwares []models.Firmware, devices []models.Device, projects []models.Project) {
	e.SetProjects(projects)
	e.SetDevices(devices)
	e.SetFirmwares(firmwares)
}

// SetSearchTerm replaces the search term and returns to page 1.
func (e *Engine) SetSearchTerm(text string) {
	e.search = text
	e.page = 1
}

// SetProjectFilter selects a project ("" clears it), clears the device
// filter and returns to page 1.
func (e *Engine) SetProjectFilter(projectID string) {
	e.projectFilter = projectID
	e.deviceFilter = ""
	e.page = 1
}

// SetDeviceFilter selects a device by identifier ("" clears it) and returns
// to page 1. Callers offer only DeviceOptions, which keeps the filter inside
// the active project.
func (e *Engine) SetDeviceFilter(deviceID string) {
	e.deviceFilter = deviceID
	e.page = 1
}

// SetPage moves to page n. Requests outside [1, TotalPages] are ignored and
// reported as false.
func (e *Engine) SetPage(n int) bool {
	if n < 1 || n > e.totalPages() {
		return false
	}
	e.page = n
	return true
}

// NextPage advances one page when possible.
func (e *Engine) NextPage() bool {
	return e.SetPage(e.page + 1)
}

// PrevPage goes back one page when possible.
func (e *Engine) PrevPage() bool {
	return e.SetPage(e.page - 1)
}

// IsSelected reports whether id is in the selection set.
func (e *Engine) IsSelected(id string) bool {
	for _, s := range e.selection {
		if s == id {
			return true
		}
	}
	return false
}

// ToggleRowSelection adds id to the selection set, or removes it if present.
func (e *Engine) ToggleRowSelection(id string) {
	if e.IsSelected(id) {
		e.removeSelected(map[string]bool{id: true})
		return
	}
	e.selection = append(e.selection, id)
}

// ToggleAllVisibleSelection adds every visible id to the selection set when
// checked, and removes exactly the visible ids otherwise. Selections on other
// pages are untouched.
func (e *Engine) ToggleAllVisibleSelection(checked bool) {
	visible := e.visibleIDs()
	if checked {
		for _, id := range visible {
			if !e.IsSelected(id) {
				e.selection = append(e.selection, id)
			}
		}
		return
	}
	drop := make(map[string]bool, len(visible))
	for _, id := range visible {
		drop[id] = true
	}
	e.removeSelected(drop)
}

// Selection returns a copy of the selection set in the order ids were added.
func (e *Engine) Selection() []string {
	out := make([]string, len(e.selection))
	copy(out, e.selection)
	return out
}

// ClearSelection empties the selection set.
func (e *Engine) ClearSelection() {
	e.selection = nil
}

// ProjectOptions lists every project as a picker option.
func (e *Engine) ProjectOptions() []Option {
	opts := make([]Option, 0, len(e.projects))
	for _, p := range e.projects {
		opts = append(opts, Option{Value: p.ID, Label: p.ProjectName})
	}
	return opts
}

// DeviceOptions lists the devices of the active project, or every device
// when no project is selected.
func (e *Engine) DeviceOptions() []Option {
	candidates := e.devices
	if e.projectFilter != "" {
		candidates = models.DevicesInProject(e.devices, e.projectFilter)
	}
	opts := make([]Option, 0, len(candidates))
	for i := range candidates {
		opts = append(opts, Option{Value: candidates[i].DeviceID, Label: candidates[i].Label()})
	}
	return opts
}

// Filtered returns every firmware passing the search and device filter,
// ignoring pagination.
func (e *Engine) Filtered() []models.Firmware {
	return Filter(e.firmwares, e.devices, e.search, e.deviceFilter, e.locale)
}

// FilteredAndPaged derives the current page of rows.
func (e *Engine) FilteredAndPaged() View {
	filtered := e.Filtered()
	total := TotalPages(len(filtered))
	paged := Paginate(filtered, e.page)

	view := View{
		Rows:          make([]Row, 0, len(paged)),
		Page:          e.page,
		TotalPages:    total,
		FilteredCount: len(filtered),
	}
	for _, fw := range paged {
		view.Rows = append(view.Rows, e.row(fw))
	}
	if len(paged) > 0 {
		view.First = (e.page-1)*PageSize + 1
		view.Last = view.First + len(paged) - 1
	}
	return view
}

// TotalPages returns ceil(n / PageSize); zero items yield zero pages.
func TotalPages(n int) int {
	return (n + PageSize - 1) / PageSize
}

// Paginate returns the slice [(page-1)*PageSize, page*PageSize) of items,
// truncated to the available range.
func Paginate(items []models.Firmware, page int) []models.Firmware {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= len(items) {
		return []models.Firmware{}
	}
	end := start + PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (e *Engine) row(fw models.Firmware) Row {
	r := Row{
		Firmware:   fw,
		DeviceName: fw.EspID,
		Selected:   e.IsSelected(fw.ID),
	}
	if d := models.FindDevice(e.devices, fw.EspID); d != nil {
		r.DeviceName = d.Name
	}
	if fw.UploadedDate != nil {
		r.Uploaded = e.locale.Date(*fw.UploadedDate)
	}
	return r
}

func (e *Engine) visibleIDs() []string {
	paged := Paginate(e.Filtered(), e.page)
	ids := make([]string, len(paged))
	for i, fw := range paged {
		ids[i] = fw.ID
	}
	return ids
}

func (e *Engine) removeSelected(drop map[string]bool) {
	kept := e.selection[:0]
	for _, id := range e.selection {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	e.selection = kept
}

func (e *Engine) totalPages() int {
	return TotalPages(len(e.Filtered()))
}

func (e *Engine) clampPage() {
	total := e.totalPages()
	if e.page > total {
		e.page = total
	}
	if e.page < 1 {
		e.page = 1
	}
}
