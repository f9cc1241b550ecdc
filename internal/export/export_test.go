package export

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/models"
)

var exportTime = time.Date(2024, time.June, 3, 14, 5, 9, 0, time.UTC)

func testInput(t *testing.T) Input {
	t.Helper()
	loc, err := locale.Lookup("en-US", "UTC")
	if err != nil {
		t.Fatalf("locale.Lookup() error = %v", err)
	}

	up1 := time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)
	up2 := time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)
	size := int64(1024)
	created := time.Date(2023, time.December, 24, 0, 0, 0, 0, time.UTC)

	return Input{
		Firmwares: []models.Firmware{
			{ID: "fw1", Version: "1.0.0", EspID: "esp-01", FileName: "a.bin", FileSize: &size, UploadedDate: &up1},
			{ID: "fw2", Version: "1.1.0", EspID: "esp-01", OriginalFileName: "b-orig.bin", UploadedDate: &up2},
			{ID: "fw3", Version: "2.0.0", EspID: "esp-02", Description: "pump fix"},
			{ID: "fw4", Version: "0.9.0", EspID: "dev-1"},
		},
		Devices: []models.Device{
			{DeviceID: "esp-01", Name: "Boiler", Project: "p1", DateCreated: &created},
			{DeviceID: "esp-02", Name: "Pump", Project: "p1", Status: "Offline"},
			{DeviceID: "esp-03", Name: "Greenhouse", Project: "p2"},
		},
		Projects: []models.Project{
			{ID: "p1", ProjectName: "Plant A"},
			{ID: "p2", ProjectName: "Farm B"},
		},
		FilteredCount: 4,
		BaseURL:       "http://localhost:5000/api",
		Locale:        loc,
	}
}

func column(s *Sheet, name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func summaryValue(t *testing.T, wb *Workbook, field string) any {
	t.Helper()
	s := wb.Sheet(SummarySheet)
	if s == nil {
		t.Fatalf("missing sheet %q", SummarySheet)
	}
	for _, row := range s.Rows {
		if row[0] == field {
			return row[1]
		}
	}
	t.Fatalf("summary field %q not found", field)
	return nil
}

func TestBuild_SheetOrder(t *testing.T) {
	wb := Build(testInput(t), exportTime)

	var names []string
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	want := []string{"Firmware Summary", "All Firmwares with URLs", "Device Information"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("sheets = %v, want %v", names, want)
	}
	if wb.Name != "Firmware_Management_All_AllDevices_2024-06-03.xlsx" {
		t.Errorf("Name = %q", wb.Name)
	}
}

func TestBuild_Summary(t *testing.T) {
	in := testInput(t)
	in.ProjectID = "p1"
	in.Search = "boil"
	in.FilteredCount = 2

	wb := Build(in, exportTime)

	tests := []struct {
		field string
		want  any
	}{
		{"Export Date", "6/3/2024"},
		{"Export Time", "2:05:09 PM"},
		{"Selected Project", "Plant A"},
		{"Selected Device", "All Devices"},
		{"Total Firmwares Exported", 3},
		{"Total Devices", 2},
		{"Current Search Term", "boil"},
		{"Current Filtered Results", 2},
		{"Note", ScopeNote},
	}
	for _, tt := range tests {
		if got := summaryValue(t, wb, tt.field); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestBuild_SummaryDefaults(t *testing.T) {
	wb := Build(testInput(t), exportTime)

	if got := summaryValue(t, wb, "Selected Project"); got != "All Projects" {
		t.Errorf("Selected Project = %v", got)
	}
	if got := summaryValue(t, wb, "Current Search Term"); got != "None" {
		t.Errorf("Current Search Term = %v", got)
	}
	if got := summaryValue(t, wb, "Total Firmwares Exported"); got != 4 {
		t.Errorf("Total Firmwares Exported = %v, want 4", got)
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		name          string
		projectID     string
		deviceID      string
		wantFirmwares []string
		wantDevices   []string
	}{
		{"no filters", "", "", []string{"fw1", "fw2", "fw3", "fw4"}, []string{"esp-01", "esp-02", "esp-03"}},
		{"project", "p1", "", []string{"fw1", "fw2", "fw3"}, []string{"esp-01", "esp-02"}},
		{"project without firmwares", "p2", "", nil, []string{"esp-03"}},
		{"device", "", "esp-02", []string{"fw3"}, []string{"esp-02"}},
		{"project and device", "p1", "esp-01", []string{"fw1", "fw2"}, []string{"esp-01"}},
		{"device outside project", "p2", "esp-01", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput(t)
			in.ProjectID = tt.projectID
			in.DeviceID = tt.deviceID

			firmwares, devices := Scope(in)

			var fwIDs, devIDs []string
			for _, fw := range firmwares {
				fwIDs = append(fwIDs, fw.ID)
			}
			for _, d := range devices {
				devIDs = append(devIDs, d.DeviceID)
			}
			if !reflect.DeepEqual(fwIDs, tt.wantFirmwares) {
				t.Errorf("firmwares = %v, want %v", fwIDs, tt.wantFirmwares)
			}
			if !reflect.DeepEqual(devIDs, tt.wantDevices) {
				t.Errorf("devices = %v, want %v", devIDs, tt.wantDevices)
			}
		})
	}
}

func TestBuild_ScopeIgnoresSearch(t *testing.T) {
	in := testInput(t)
	in.Search = "nothing matches this"
	in.FilteredCount = 0

	wb := Build(in, exportTime)
	if got := len(wb.Sheet(FirmwareSheet).Rows); got != 4 {
		t.Errorf("firmware rows = %d, want 4", got)
	}
}

func TestBuild_FirmwareRows(t *testing.T) {
	wb := Build(testInput(t), exportTime)
	s := wb.Sheet(FirmwareSheet)

	want := [][]any{
		{"fw1", "1.0.0", "N/A", "esp-01", "Boiler", "Plant A", "a.bin", int64(1024),
			"1/15/2024", "10:30:00 AM", "2024-01-15T10:30:00.000Z",
			"http://localhost:5000/api/firmware/download/fw1", "Active"},
		{"fw2", "1.1.0", "N/A", "esp-01", "Boiler", "Plant A", "b-orig.bin", "N/A",
			"2/1/2024", "8:00:00 AM", "2024-02-01T08:00:00.000Z",
			"http://localhost:5000/api/firmware/download/fw2", "Active"},
		{"fw3", "2.0.0", "pump fix", "esp-02", "Pump", "Plant A", "N/A", "N/A",
			"N/A", "N/A", "N/A",
			"http://localhost:5000/api/firmware/download/fw3", "Active"},
	}
	for i, w := range want {
		if !reflect.DeepEqual(s.Rows[i], w) {
			t.Errorf("row %d = %v, want %v", i, s.Rows[i], w)
		}
	}
}

func TestBuild_UnknownDevice(t *testing.T) {
	wb := Build(testInput(t), exportTime)
	s := wb.Sheet(FirmwareSheet)
	row := s.Rows[3]

	if got := row[column(s, "Device ID")]; got != "dev-1" {
		t.Errorf("Device ID = %v, want dev-1", got)
	}
	if got := row[column(s, "Device Name")]; got != "Unknown" {
		t.Errorf("Device Name = %v, want Unknown", got)
	}
	if got := row[column(s, "Project")]; got != "N/A" {
		t.Errorf("Project = %v, want N/A", got)
	}
}

func TestBuild_DeviceRows(t *testing.T) {
	wb := Build(testInput(t), exportTime)
	s := wb.Sheet(DeviceSheet)

	want := [][]any{
		// fw2 is last in received order even though it is also the newest.
		{"Boiler", "esp-01", "Plant A", "Active", "12/24/2023", 2, "1.1.0", "2/1/2024"},
		{"Pump", "esp-02", "Plant A", "Offline", "N/A", 1, "2.0.0", "N/A"},
		{"Greenhouse", "esp-03", "Farm B", "Active", "N/A", 0, "N/A", "N/A"},
	}
	if !reflect.DeepEqual(s.Rows, want) {
		t.Errorf("rows = %v\nwant %v", s.Rows, want)
	}
}

func TestBuild_LatestIsReceivedOrder(t *testing.T) {
	in := testInput(t)
	// Reverse esp-01 firmwares so the older one arrives last.
	in.Firmwares[0], in.Firmwares[1] = in.Firmwares[1], in.Firmwares[0]

	wb := Build(in, exportTime)
	row := wb.Sheet(DeviceSheet).Rows[0]
	if row[6] != "1.0.0" || row[7] != "1/15/2024" {
		t.Errorf("latest = %v / %v, want 1.0.0 / 1/15/2024", row[6], row[7])
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := Build(testInput(t), exportTime)
	b := Build(testInput(t), exportTime)
	if !reflect.DeepEqual(a, b) {
		t.Error("Build() is not deterministic for identical input")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		project, device string
		now             time.Time
		want            string
	}{
		{"", "", exportTime, "Firmware_Management_All_AllDevices_2024-06-03.xlsx"},
		{"Plant A", "", exportTime, "Firmware_Management_Plant A_AllDevices_2024-06-03.xlsx"},
		{"Plant A", "Boiler", exportTime, "Firmware_Management_Plant A_Boiler_2024-06-03.xlsx"},
		{"", "", time.Date(2024, 6, 3, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)), "Firmware_Management_All_AllDevices_2024-06-04.xlsx"},
	}
	for _, tt := range tests {
		if got := FileName(tt.project, tt.device, tt.now); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.project, tt.device, got, tt.want)
		}
	}
}

func TestWorkbook_Write(t *testing.T) {
	wb := Build(testInput(t), exportTime)

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{SummarySheet, FirmwareSheet, DeviceSheet}) {
		t.Errorf("sheet list = %v", got)
	}

	rows, err := f.GetRows(DeviceSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("device sheet rows = %d, want 4 (header + 3)", len(rows))
	}
	if rows[0][0] != "Device Name" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][5] != "2" {
		t.Errorf("Total Firmwares cell = %q, want 2", rows[1][5])
	}
}

func TestWorkbook_Save(t *testing.T) {
	dir := t.TempDir()
	in := testInput(t)
	in.ProjectID = "p1"
	in.Projects[0].ProjectName = "Plant/A"

	wb := Build(in, exportTime)
	path, err := wb.Save(dir)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("saved outside dir: %s", path)
	}
	if filepath.Base(path) != "Firmware_Management_Plant_A_AllDevices_2024-06-03.xlsx" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stat() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}
