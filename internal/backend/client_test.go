package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const firmwaresJSON = `[
  {"_id":"fw1","version":"1.0.0","esp_id":"esp-01","fileName":"a.bin","uploadedDate":"2024-01-15T10:30:00.000Z"},
  {"_id":"fw2","version":"1.1.0","esp_id":"esp-02","fileSize":"2048","uploadedDate":null}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api", StaticToken("tok-123"))
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:5000/api/", nil)

	if client.BaseURL != "http://localhost:5000/api" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", client.BaseURL)
	}
	if client.HTTPClient.Timeout != 0 {
		t.Errorf("Timeout = %v, want none by default", client.HTTPClient.Timeout)
	}
	if client.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", client.MaxRetries)
	}
	if client.Tokens.Token() != "" {
		t.Errorf("Token() = %q, want empty", client.Tokens.Token())
	}
}

func TestSetTimeoutAndRetry(t *testing.T) {
	client := NewClient("http://localhost", nil)
	client.SetTimeout(5 * time.Second)
	client.SetRetry(3, time.Millisecond)

	if client.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.HTTPClient.Timeout)
	}
	if client.MaxRetries != 3 || client.RetryDelay != time.Millisecond {
		t.Errorf("retry = %d/%v", client.MaxRetries, client.RetryDelay)
	}
}

func TestListFirmwares(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firmware/firmwares-details" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("firmware list should be sent without a token")
		}
		w.Write([]byte(firmwaresJSON))
	})

	firmwares, err := client.ListFirmwares(context.Background())
	if err != nil {
		t.Fatalf("ListFirmwares() error = %v", err)
	}
	if len(firmwares) != 2 {
		t.Fatalf("len = %d, want 2", len(firmwares))
	}
	if firmwares[0].UploadedDate == nil || firmwares[0].UploadedDate.Day() != 15 {
		t.Errorf("UploadedDate = %v", firmwares[0].UploadedDate)
	}
	if firmwares[1].FileSize == nil || *firmwares[1].FileSize != 2048 {
		t.Errorf("FileSize = %v, want 2048", firmwares[1].FileSize)
	}
}

func TestListFirmwares_ParseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"not a list"}`))
	})

	_, err := client.ListFirmwares(context.Background())
	if !IsParseError(err) {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestListDevices_BearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[{"deviceId":"esp-01","name":"Boiler","project":"p1"}]`))
	})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Boiler" {
		t.Errorf("devices = %+v", devices)
	}
}

func TestListDevices_NonArrayIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"devices":[]}`))
	})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("devices = %#v, want empty non-nil list", devices)
	}
}

func TestListDevices_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	})

	_, err := client.ListDevices(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("error = %v, want auth error", err)
	}
	if ServerMessage(err) != "jwt expired" {
		t.Errorf("ServerMessage() = %q", ServerMessage(err))
	}
}

func TestListProjects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"_id":"p1","projectName":"Plant A"}]`))
	})

	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ProjectName != "Plant A" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestUpload_SendsAllFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/firmware/upload" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if _, ok := r.MultipartForm.Value["version"]; !ok {
			t.Error("version field missing, want it sent even when empty")
		}
		if got := r.FormValue("version"); got != "" {
			t.Errorf("version = %q, want empty", got)
		}
		if got := r.FormValue("esp_id"); got != "esp-01" {
			t.Errorf("esp_id = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "app.bin" || string(data) != "BINARY" {
			t.Errorf("file = %s %q", header.Filename, data)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"message":  "Firmware uploaded",
			"firmware": map[string]any{"_id": "fw9", "version": "", "esp_id": "esp-01"},
		})
	})

	fw, err := client.Upload(context.Background(), UploadRequest{
		Version:  "",
		EspID:    "esp-01",
		FileName: "app.bin",
		File:     strings.NewReader("BINARY"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if fw == nil || fw.ID != "fw9" {
		t.Errorf("created = %+v", fw)
	}
}

func TestUpload_ErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"Version already exists"}`, "Version already exists"},
		{"no message", `{}`, "Failed to upload firmware"},
		{"not json", `oops`, "Failed to upload firmware"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			})
			_, err := client.Upload(context.Background(), UploadRequest{FileName: "x.bin", File: strings.NewReader("x")})
			if !IsHTTPError(err) {
				t.Fatalf("error = %v, want HTTP error", err)
			}
			if got := ShortMessage(err); got != tt.want {
				t.Errorf("ShortMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firmware/download/fw1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0xE9, 0x01, 0x02})
	})

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "fw1", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != 3 || !bytes.Equal(buf.Bytes(), []byte{0xE9, 0x01, 0x02}) {
		t.Errorf("downloaded %d bytes: %x", n, buf.Bytes())
	}
}

func TestDownload_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})

	var buf bytes.Buffer
	_, err := client.Download(context.Background(), "nope", &buf)
	if !IsHTTPError(err) {
		t.Errorf("error = %v, want HTTP error", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes on failure", buf.Len())
	}
}

func TestDelete(t *testing.T) {
	var method, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Delete(context.Background(), "fw 1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if method != http.MethodDelete || path != "/api/firmware/delete/fw 1" {
		t.Errorf("request = %s %s", method, path)
	}
}

func TestDelete_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.Delete(context.Background(), "fw1")
	if !IsHTTPError(err) {
		t.Fatalf("error = %v, want HTTP error", err)
	}
	if !IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "ada@example.com" || creds["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"jwt","user":{"_id":"u1","name":"Ada","email":"ada@example.com","role":"admin"}}`))
	})

	resp, err := client.Login(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token != "jwt" || resp.User.Name != "Ada" {
		t.Errorf("response = %+v", resp)
	}

	_, err = client.Login(context.Background(), "ada@example.com", "wrong")
	if !IsAuthError(err) || ServerMessage(err) != "Invalid credentials" {
		t.Errorf("error = %v", err)
	}
}

func TestRetry_ListCalls(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	})
	client.SetRetry(3, time.Millisecond)

	if _, err := client.ListFirmwares(context.Background()); err != nil {
		t.Fatalf("ListFirmwares() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_DisabledByDefault(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := client.ListFirmwares(context.Background()); err == nil {
		t.Fatal("ListFirmwares() should fail")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_NotForAuthErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	client.SetRetry(3, time.Millisecond)

	if _, err := client.ListDevices(context.Background()); !IsAuthError(err) {
		t.Fatalf("error = %v, want auth error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, nil)
	_, err := client.ListFirmwares(context.Background())
	if !IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
}

func TestWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotAuth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/firmware/events" {
			http.NotFound(w, r)
			return
		}
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Event{Type: EventUploaded, ID: "fw1"})
		conn.WriteJSON(Event{Type: EventDeleted, ID: "fw2"})
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api", StaticToken("tok"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 2)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(ctx, func(ev Event) { events <- ev })
	}()

	first, second := <-events, <-events
	if first.Type != EventUploaded || first.ID != "fw1" {
		t.Errorf("first = %+v", first)
	}
	if second.Type != EventDeleted || second.ID != "fw2" {
		t.Errorf("second = %+v", second)
	}
	if auth := <-gotAuth; auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestEventsURL(t *testing.T) {
	client := NewClient("https://fw.example.com/api", nil)
	if got := client.EventsURL(); got != "wss://fw.example.com/api/firmware/events" {
		t.Errorf("EventsURL() = %s", got)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewNetworkError("failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}
