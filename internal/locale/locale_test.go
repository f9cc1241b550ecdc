package locale

import (
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	ts := time.Date(2024, 1, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		tag      string
		wantDate string
		wantTime string
	}{
		{"en-US", "1/5/2024", "2:07:09 PM"},
		{"", "1/5/2024", "2:07:09 PM"},
		{"en-GB", "05/01/2024", "14:07:09"},
		{"de-DE", "5.1.2024", "14:07:09"},
		{"de-AT", "5.1.2024", "14:07:09"},
		{"fr", "05/01/2024", "14:07:09"},
		{"iso", "2024-01-05", "14:07:09"},
		{"ja-JP", "1/5/2024", "2:07:09 PM"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			l, err := Lookup(tt.tag, "UTC")
			if err != nil {
				t.Fatalf("Lookup(%q) error = %v", tt.tag, err)
			}
			if got := l.Date(ts); got != tt.wantDate {
				t.Errorf("Date() = %q, want %q", got, tt.wantDate)
			}
			if got := l.Time(ts); got != tt.wantTime {
				t.Errorf("Time() = %q, want %q", got, tt.wantTime)
			}
		})
	}
}

func TestLookup_Errors(t *testing.T) {
	if _, err := Lookup("not a tag!!", "UTC"); err == nil {
		t.Error("Lookup() should reject a malformed tag")
	}
	if _, err := Lookup("en-US", "Mars/Olympus"); err == nil {
		t.Error("Lookup() should reject an unknown zone")
	}
}

func TestLocationApplied(t *testing.T) {
	l, err := Lookup("iso", "Asia/Tokyo")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	ts := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)
	if got := l.Date(ts); got != "2024-01-06" {
		t.Errorf("Date() = %q, want 2024-01-06", got)
	}
}
