package main

import (
	"errors"
	"reflect"
	"testing"

	"github.com/muurk/espfw/internal/config"
	"github.com/muurk/espfw/internal/discovery"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/locale"
	"github.com/muurk/espfw/internal/models"
)

func testEngine(t *testing.T) *listing.Engine {
	t.Helper()
	loc, err := locale.Lookup("en-US", "UTC")
	if err != nil {
		t.Fatalf("locale.Lookup() error = %v", err)
	}
	e := listing.New(loc)
	e.SetCollections(
		[]models.Firmware{
			{ID: "fw1", Version: "1.0.0", EspID: "esp-01", OriginalFileName: "boiler.bin"},
			{ID: "fw2", Version: "2.0.0", EspID: "esp-02", FileName: "fw2.bin"},
			{ID: "fw3", EspID: "esp-03"},
		},
		[]models.Device{
			{DeviceID: "esp-01", Name: "Boiler", Project: "p1"},
			{DeviceID: "esp-02", Name: "Pump", Project: "p1"},
			{DeviceID: "esp-03", Name: "Greenhouse", Project: "p2"},
		},
		[]models.Project{
			{ID: "p1", ProjectName: "Plant A"},
			{ID: "p2", ProjectName: "Farm B"},
		},
	)
	return e
}

func TestFilterFlags_Apply(t *testing.T) {
	tests := []struct {
		name        string
		flags       filterFlags
		wantErr     bool
		wantProject string
		wantDevice  string
		wantIDs     []string
	}{
		{
			name:    "no filters",
			wantIDs: []string{"fw1", "fw2", "fw3"},
		},
		{
			name:        "project by id",
			flags:       filterFlags{project: "p2"},
			wantProject: "p2",
			wantIDs:     []string{"fw1", "fw2", "fw3"},
		},
		{
			name:        "project by name ignoring case",
			flags:       filterFlags{project: "plant a"},
			wantProject: "p1",
			wantIDs:     []string{"fw1", "fw2", "fw3"},
		},
		{
			name:        "device inside project",
			flags:       filterFlags{project: "p1", device: "esp-02"},
			wantProject: "p1",
			wantDevice:  "esp-02",
			wantIDs:     []string{"fw2"},
		},
		{
			name:    "device outside project",
			flags:   filterFlags{project: "p1", device: "esp-03"},
			wantErr: true,
		},
		{
			name:    "unknown device",
			flags:   filterFlags{device: "esp-99"},
			wantErr: true,
		},
		{
			name:    "unknown project",
			flags:   filterFlags{project: "Nowhere"},
			wantErr: true,
		},
		{
			name:    "search by device name",
			flags:   filterFlags{search: "boil"},
			wantIDs: []string{"fw1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(t)
			err := tt.flags.apply(e)
			if tt.wantErr {
				if err == nil {
					t.Fatal("apply() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("apply() error = %v", err)
			}
			if e.ProjectFilter() != tt.wantProject || e.DeviceFilter() != tt.wantDevice {
				t.Errorf("filters = %q/%q, want %q/%q", e.ProjectFilter(), e.DeviceFilter(), tt.wantProject, tt.wantDevice)
			}
			var ids []string
			for _, fw := range e.Filtered() {
				ids = append(ids, fw.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("Filtered() = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestSelectIDs(t *testing.T) {
	e := testEngine(t)
	if err := selectIDs(e, []string{"fw1", "nope", "gone"}); err == nil {
		t.Fatal("selectIDs() with unknown ids succeeded")
	}
	if len(e.Selection()) != 0 {
		t.Errorf("Selection() = %v after rejected ids, want empty", e.Selection())
	}

	if err := selectIDs(e, []string{"fw3", "fw1", "fw3"}); err != nil {
		t.Fatalf("selectIDs() error = %v", err)
	}
	if got := e.Selection(); !reflect.DeepEqual(got, []string{"fw3", "fw1"}) {
		t.Errorf("Selection() = %v, want [fw3 fw1]", got)
	}
}

func TestDisplayNames(t *testing.T) {
	e := testEngine(t)
	got := displayNames(e.Firmwares(), []string{"fw1", "fw2", "fw3", "missing"})
	want := map[string]string{
		"fw1": "1.0.0 (boiler.bin)",
		"fw2": "2.0.0 (fw2.bin)",
		"fw3": "- (" + models.DefaultFileName + ")",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("displayNames() = %v, want %v", got, want)
	}
}

func TestPickBackend(t *testing.T) {
	found := []*discovery.Backend{
		{Instance: "espfw"},
		{Instance: "lab"},
	}
	known := map[string]*config.Backend{
		"lab": {Nickname: "Lab bench"},
	}

	tests := []struct {
		ref  string
		want string
	}{
		{"lab", "lab"},
		{"ESPFW", "espfw"},
		{"lab bench", "lab"},
		{"office", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			name, b := pickBackend(found, known, tt.ref)
			if name != tt.want {
				t.Errorf("pickBackend(%q) = %q, want %q", tt.ref, name, tt.want)
			}
			if (b == nil) != (tt.want == "") {
				t.Errorf("pickBackend(%q) backend = %v", tt.ref, b)
			}
		})
	}
}

func TestHints(t *testing.T) {
	got := hints(errors.New("boom"))
	want := []string{"An unexpected error occurred. Please try again."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hints() = %q, want %q", got, want)
	}
}
