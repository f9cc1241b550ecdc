package export

import (
	"time"

	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/models"
	"github.com/muurk/espfw/internal/urls"
)

// Sheet names, in workbook order.
const (
	SummarySheet  = "Firmware Summary"
	FirmwareSheet = "All Firmwares with URLs"
	DeviceSheet   = "Device Information"
)

// ScopeNote is the fixed note row of the summary sheet.
const ScopeNote = "Export includes ALL firmwares for selected project/device, not just filtered results"

const notAvailable = "N/A"

// isoMillis matches the JavaScript Date.prototype.toISOString layout.
const isoMillis = "2006-01-02T15:04:05.000Z"

var (
	summaryColumns  = []string{"Field", "Value"}
	firmwareColumns = []string{
		"Firmware ID", "Version", "Description", "Device ID", "Device Name",
		"Project", "File Name", "File Size", "Upload Date", "Upload Time",
		"Full Upload Date", "Download URL", "Status",
	}
	deviceColumns = []string{
		"Device Name", "Device ID", "Project", "Status", "Date Created",
		"Total Firmwares", "Latest Firmware", "Latest Upload Date",
	}
)

// Input is everything the transform reads.
type Input struct {
	Firmwares []models.Firmware
	Devices   []models.Device
	Projects  []models.Project

	ProjectID string // Active project filter, empty for none
	DeviceID  string // Active device filter (Device.DeviceID), empty for none
	Search    string

	// FilteredCount is the size of the current search-narrowed view.
	FilteredCount int

	// BaseURL is the backend API base the download links are built from.
	BaseURL string

	Locale locale.Locale
}

// Sheet is one named table. Cells are strings or ints.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Workbook is the transform output.
type Workbook struct {
	Name   string // Suggested file name
	Sheets []Sheet
}

// Sheet returns the named sheet, or nil.
func (w *Workbook) Sheet(name string) *Sheet {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i]
		}
	}
	return nil
}

// Scope returns the firmwares and devices an export covers: the project
// filter keeps records of devices in that project, the device filter keeps
// records of that device. Received order is preserved.
func Scope(in Input) ([]models.Firmware, []models.Device) {
	firmwares := in.Firmwares
	if in.ProjectID != "" {
		owned := make(map[string]bool)
		for _, d := range models.DevicesInProject(in.Devices, in.ProjectID) {
			owned[d.DeviceID] = true
		}
		firmwares = filterFirmwares(firmwares, func(fw *models.Firmware) bool { return owned[fw.EspID] })
	}
	if in.DeviceID != "" {
		firmwares = filterFirmwares(firmwares, func(fw *models.Firmware) bool { return fw.EspID == in.DeviceID })
	}

	devices := in.Devices
	if in.ProjectID != "" {
		devices = models.DevicesInProject(devices, in.ProjectID)
	}
	if in.DeviceID != "" {
		var kept []models.Device
		for _, d := range devices {
			if d.DeviceID == in.DeviceID {
				kept = append(kept, d)
			}
		}
		devices = kept
	}
	return firmwares, devices
}

// Build derives the three sheets. now is only used for the summary
// timestamp and the file name.
func Build(in Input, now time.Time) *Workbook {
	firmwares, devices := Scope(in)

	projectName := ""
	if p := models.FindProject(in.Projects, in.ProjectID); in.ProjectID != "" && p != nil {
		projectName = p.ProjectName
	}
	deviceName := ""
	if d := models.FindDevice(in.Devices, in.DeviceID); in.DeviceID != "" && d != nil {
		deviceName = d.Name
	}

	return &Workbook{
		Name: FileName(projectName, deviceName, now),
		Sheets: []Sheet{
			summarySheet(in, projectName, deviceName, len(firmwares), len(devices), now),
			firmwareSheet(in, firmwares),
			deviceSheet(in, firmwares, devices),
		},
	}
}

// FileName renders Firmware_Management_{project}_{device}_{YYYY-MM-DD}.xlsx.
// Empty names become "All" and "AllDevices"; the date is the UTC day.
func FileName(projectName, deviceName string, now time.Time) string {
	return "Firmware_Management_" + orDefault(projectName, "All") + "_" +
		orDefault(deviceName, "AllDevices") + "_" + now.UTC().Format("2006-01-02") + ".xlsx"
}

func summarySheet(in Input, projectName, deviceName string, firmwareCount, deviceCount int, now time.Time) Sheet {
	return Sheet{
		Name:    SummarySheet,
		Columns: summaryColumns,
		Rows: [][]any{
			{"Export Date", in.Locale.Date(now)},
			{"Export Time", in.Locale.Time(now)},
			{"Selected Project", orDefault(projectName, "All Projects")},
			{"Selected Device", orDefault(deviceName, "All Devices")},
			{"Total Firmwares Exported", firmwareCount},
			{"Total Devices", deviceCount},
			{"Current Search Term", orDefault(in.Search, "None")},
			{"Current Filtered Results", in.FilteredCount},
			{"Note", ScopeNote},
		},
	}
}

func firmwareSheet(in Input, firmwares []models.Firmware) Sheet {
	rows := make([][]any, 0, len(firmwares))
	for i := range firmwares {
		fw := &firmwares[i]
		device := models.FindDevice(in.Devices, fw.EspID)

		deviceName := "Unknown"
		if device != nil && device.Name != "" {
			deviceName = device.Name
		}

		var fileSize any = notAvailable
		if fw.FileSize != nil && *fw.FileSize != 0 {
			fileSize = *fw.FileSize
		}

		uploadDate, uploadTime, uploadISO := notAvailable, notAvailable, notAvailable
		if fw.UploadedDate != nil {
			uploadDate = in.Locale.Date(*fw.UploadedDate)
			uploadTime = in.Locale.Time(*fw.UploadedDate)
			uploadISO = fw.UploadedDate.UTC().Format(isoMillis)
		}

		fileName := fw.FileName
		if fileName == "" {
			fileName = orDefault(fw.OriginalFileName, notAvailable)
		}

		rows = append(rows, []any{
			fw.ID,
			fw.Version,
			orDefault(fw.Description, notAvailable),
			fw.EspID,
			deviceName,
			projectNameOf(in.Projects, device),
			fileName,
			fileSize,
			uploadDate,
			uploadTime,
			uploadISO,
			urls.DownloadURL(in.BaseURL, fw.ID),
			"Active",
		})
	}
	return Sheet{Name: FirmwareSheet, Columns: firmwareColumns, Rows: rows}
}

func deviceSheet(in Input, firmwares []models.Firmware, devices []models.Device) Sheet {
	rows := make([][]any, 0, len(devices))
	for i := range devices {
		d := &devices[i]

		var owned []*models.Firmware
		for j := range firmwares {
			if firmwares[j].EspID == d.DeviceID {
				owned = append(owned, &firmwares[j])
			}
		}

		created := notAvailable
		if d.DateCreated != nil {
			created = in.Locale.Date(*d.DateCreated)
		}

		// Latest is the last one in received order, not the newest timestamp.
		latest, latestDate := notAvailable, notAvailable
		if n := len(owned); n > 0 {
			last := owned[n-1]
			latest = last.Version
			if last.UploadedDate != nil {
				latestDate = in.Locale.Date(*last.UploadedDate)
			}
		}

		rows = append(rows, []any{
			d.Name,
			d.DeviceID,
			projectNameOf(in.Projects, d),
			orDefault(d.Status, "Active"),
			created,
			len(owned),
			latest,
			latestDate,
		})
	}
	return Sheet{Name: DeviceSheet, Columns: deviceColumns, Rows: rows}
}

func projectNameOf(projects []models.Project, device *models.Device) string {
	if device == nil {
		return notAvailable
	}
	if p := models.FindProject(projects, device.Project); p != nil && p.ProjectName != "" {
		return p.ProjectName
	}
	return notAvailable
}

func filterFirmwares(in []models.Firmware, keep func(*models.Firmware) bool) []models.Firmware {
	var out []models.Firmware
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
