package urls

import "testing"

func TestDownloadURL(t *testing.T) {
	tests := []struct {
		base string
		id   string
		want string
	}{
		{"http://localhost:5000/api", "abc123", "http://localhost:5000/api/firmware/download/abc123"},
		{"http://localhost:5000/api/", "abc123", "http://localhost:5000/api/firmware/download/abc123"},
		{"https://fw.example.com", "a b", "https://fw.example.com/firmware/download/a%20b"},
	}
	for _, tt := range tests {
		if got := DownloadURL(tt.base, tt.id); got != tt.want {
			t.Errorf("DownloadURL(%q, %q) = %q, want %q", tt.base, tt.id, got, tt.want)
		}
	}
}

func TestFirmwareDelete(t *testing.T) {
	if got := FirmwareDelete("fw1"); got != "/firmware/delete/fw1" {
		t.Errorf("FirmwareDelete() = %q", got)
	}
}

func TestWebSocket(t *testing.T) {
	tests := map[string]string{
		"http://h:1/api":  "ws://h:1/api",
		"https://h/api":   "wss://h/api",
		"ws://already/ok": "ws://already/ok",
	}
	for in, want := range tests {
		if got := WebSocket(in); got != want {
			t.Errorf("WebSocket(%q) = %q, want %q", in, got, want)
		}
	}
}
