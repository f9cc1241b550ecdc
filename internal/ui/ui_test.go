package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/espfw/internal/bulk"
	"github.com/muurk/espfw/internal/listing"
	"github.com/muurk/espfw/internal/models"
)

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := &Prompter{In: strings.NewReader(tt.input), Out: &out}
		if got := p.Confirm("Delete this firmware?"); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Delete this firmware?") {
			t.Errorf("prompt not shown for input %q", tt.input)
		}
	}
}

func TestPrompterAssumeYes(t *testing.T) {
	var out bytes.Buffer
	p := &Prompter{In: strings.NewReader(""), Out: &out, AssumeYes: true}
	if !p.Confirm("Delete all selected firmwares?") {
		t.Error("AssumeYes should confirm")
	}
	if out.Len() != 0 {
		t.Errorf("AssumeYes should not print, got %q", out.String())
	}
}

func TestPrompterReadsSuccessiveAnswers(t *testing.T) {
	p := &Prompter{In: strings.NewReader("y\nn\n"), Out: &bytes.Buffer{}}
	if !p.Confirm("first") {
		t.Error("first answer should be yes")
	}
	if p.Confirm("second") {
		t.Error("second answer should be no")
	}
}

func TestFormatSize(t *testing.T) {
	size := func(n int64) *int64 { return &n }
	tests := []struct {
		in   *int64
		want string
	}{
		{nil, "N/A"},
		{size(0), "N/A"},
		{size(512), "512 B"},
		{size(1024000), "1.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderFirmwareTable(t *testing.T) {
	view := listing.View{
		Rows: []listing.Row{
			{Firmware: models.Firmware{ID: "a", Version: "1.2.3", FileName: "a.bin"}, DeviceName: "Boiler", Selected: true},
			{Firmware: models.Firmware{ID: "b", Version: "2.0.0"}, DeviceName: "esp-09"},
		},
		Page: 1, TotalPages: 1, FilteredCount: 2, First: 1, Last: 2,
	}

	out := RenderFirmwareTable(view, TableOptions{Width: 100, Cursor: 0, Selectable: true})
	for _, want := range []string{"1.2.3", "Boiler", "a.bin", "2.0.0", "esp-09", "firmware.bin", CheckboxOn, CheckboxOff} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	if got := RenderPagination(view); !strings.Contains(got, "Showing 1 to 2 of 2 results") {
		t.Errorf("RenderPagination() = %q", got)
	}
}

func TestRenderFirmwareTable_Empty(t *testing.T) {
	out := RenderFirmwareTable(listing.View{}, TableOptions{Cursor: -1})
	if !strings.Contains(out, "No firmwares found") {
		t.Errorf("empty table = %q", out)
	}
	if RenderPagination(listing.View{}) != "" {
		t.Error("empty view should have no pagination caption")
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress("Downloading", []string{"a.bin", "b.bin", "c.bin", "d.bin"})
	p.Update(1, ItemComplete, "")
	p.Update(2, ItemRunning, "")
	p.Update(3, ItemFailed, "HTTP 404")
	p.Update(9, ItemComplete, "") // ignored

	if p.Settled() != 2 {
		t.Errorf("Settled() = %d, want 2", p.Settled())
	}
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}
	out := p.Render()
	for _, want := range []string{"Downloading", "a.bin", "(HTTP 404)", "[2/4]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
}

func TestRunner(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:   "Bulk Delete",
		Command: "espfw delete",
		Params:  []Param{{"Backend", "http://localhost:5000/api"}},
		IDs:     []string{"1", "2", "3"},
		Names:   map[string]string{"1": "one.bin"},
		Output:  &out,
		Hints:   func(error) []string { return []string{"Check the backend"} },
	})

	boom := errors.New("boom")
	_, err := r.Run(context.Background(), func(ctx context.Context) (*bulk.Report, error) {
		r.OnItem("delete", bulk.Result{ID: "1"})
		r.OnItem("delete", bulk.Result{ID: "2", Err: boom})
		return &bulk.Report{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"BULK DELETE", "espfw delete", "one.bin", "(boom)", StepMarkerSkipped, "Bulk Delete failed", "Check the backend"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if r.progress.Items[2].Status != ItemSkipped {
		t.Errorf("item 3 status = %v, want skipped", r.progress.Items[2].Status)
	}
}

func TestHeaderKeepsParamOrder(t *testing.T) {
	h := NewHeader("Export", "espfw export",
		Param{"Project", "Plant A"},
		Param{"Device", "All"},
	).SetWidth(80)
	out := h.Render()
	if strings.Index(out, "Project") > strings.Index(out, "Device") {
		t.Errorf("params out of order:\n%s", out)
	}
}
