package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "espfw") {
		t.Errorf("GetConfigDir() = %v, should contain 'espfw'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(tmp, "espfw") {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(tmp, "espfw"))
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Backends == nil {
		t.Error("NewRegistry().Backends should not be nil")
	}
	if reg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %v, want %v", reg.BackendURL, DefaultBackendURL)
	}
	if reg.BulkConcurrency != 1 {
		t.Errorf("BulkConcurrency = %v, want 1", reg.BulkConcurrency)
	}
	if reg.TimeoutSeconds != 0 || reg.Timeout() != 0 {
		t.Errorf("Timeout = %v, want none", reg.Timeout())
	}
	if reg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %v, want 0", reg.MaxRetries)
	}
}

func TestRegistryEnsureBackend(t *testing.T) {
	reg := NewRegistry()

	b1 := reg.EnsureBackend("lab")
	if b1 == nil {
		t.Fatal("EnsureBackend() returned nil")
	}
	if b2 := reg.EnsureBackend("lab"); b1 != b2 {
		t.Error("EnsureBackend() should return same instance for same name")
	}
	if b3 := reg.EnsureBackend("office"); b1 == b3 {
		t.Error("EnsureBackend() should create new instance for different name")
	}
}

func TestRegistryUpdateBackendSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateBackendSeen("lab", "http://10.0.0.5:5000/api")
	after := time.Now()

	backend := reg.GetBackend("lab")
	if backend == nil {
		t.Fatal("Backend should exist after UpdateBackendSeen()")
	}
	if backend.URL != "http://10.0.0.5:5000/api" {
		t.Errorf("URL = %v", backend.URL)
	}
	if backend.LastSeen.Before(before) || backend.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", backend.LastSeen, before, after)
	}

	reg.SetBackendNickname("lab", "Lab bench")
	if reg.GetBackend("lab").Nickname != "Lab bench" {
		t.Errorf("Nickname = %v", reg.GetBackend("lab").Nickname)
	}
}

func TestSettingsGetSet(t *testing.T) {
	s := DefaultSettings()

	tests := []struct {
		key, value string
	}{
		{"backend_url", "https://fw.example.com/api"},
		{"locale", "en-GB"},
		{"timezone", "Europe/Berlin"},
		{"download_dir", "/tmp/fw"},
		{"export_dir", "/tmp/exports"},
		{"bulk_concurrency", "4"},
		{"timeout_seconds", "30"},
		{"max_retries", "2"},
	}
	for _, tt := range tests {
		if err := s.Set(tt.key, tt.value); err != nil {
			t.Fatalf("Set(%q) error = %v", tt.key, err)
		}
		got, err := s.Get(tt.key)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", tt.key, err)
		}
		if got != tt.value {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.value)
		}
	}

	if s.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", s.Timeout())
	}
}

func TestSettingsSet_Errors(t *testing.T) {
	s := DefaultSettings()

	if err := s.Set("colour", "blue"); err == nil {
		t.Error("Set() should reject unknown keys")
	}
	if err := s.Set("max_retries", "many"); err == nil {
		t.Error("Set() should reject non-numeric values")
	}
	if err := s.Set("bulk_concurrency", "-1"); err == nil {
		t.Error("Set() should reject negative values")
	}
	if _, err := s.Get("colour"); err == nil {
		t.Error("Get() should reject unknown keys")
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() default error = %v", err)
	}

	s.BackendURL = "localhost:5000"
	if err := s.Validate(); err == nil {
		t.Error("Validate() should reject URLs without a scheme")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 8 {
		t.Errorf("Keys() = %v, want 8 keys", keys)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("Keys() not sorted: %v", keys)
		}
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	testConfigPath := filepath.Join(tmpDir, "nested", "config.yaml")

	reg := NewRegistry()
	reg.BackendURL = "http://10.0.0.5:5000/api"
	reg.Locale = "de-DE"
	reg.BulkConcurrency = 3
	reg.UpdateBackendSeen("lab", "http://10.0.0.5:5000/api")

	if err := reg.SaveFile(testConfigPath); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(testConfigPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(testConfigPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadFile(testConfigPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.BackendURL != "http://10.0.0.5:5000/api" || loaded.Locale != "de-DE" || loaded.BulkConcurrency != 3 {
		t.Errorf("loaded settings = %+v", loaded.Settings)
	}
	if b := loaded.GetBackend("lab"); b == nil || b.URL != "http://10.0.0.5:5000/api" {
		t.Errorf("loaded backend = %+v", b)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	reg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %v, want default", reg.BackendURL)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nlocale: en-GB\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Locale != "en-GB" {
		t.Errorf("Locale = %v, want en-GB", reg.Locale)
	}
	if reg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %v, want default", reg.BackendURL)
	}
}

func TestLoadFile_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unsupported versions")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
