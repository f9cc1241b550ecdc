package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Registry represents the entire user configuration file: client settings
// plus the backends seen by discovery.
type Registry struct {
	Version  int `yaml:"version"`
	Settings `yaml:",inline"`
	Backends map[string]*Backend `yaml:"backends,omitempty"` // Keyed by mDNS instance name
}

// Settings are the client options. Command-line flags override them.
type Settings struct {
	BackendURL      string `yaml:"backend_url"`
	Locale          string `yaml:"locale,omitempty"`   // BCP 47 tag or "iso"
	Timezone        string `yaml:"timezone,omitempty"` // IANA zone, empty for local
	DownloadDir     string `yaml:"download_dir,omitempty"`
	ExportDir       string `yaml:"export_dir,omitempty"`
	BulkConcurrency int    `yaml:"bulk_concurrency"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"` // 0 = no client timeout
	MaxRetries      int    `yaml:"max_retries"`
}

// Backend is a firmware backend found on the local network.
type Backend struct {
	Nickname string    `yaml:"nickname,omitempty"`
	URL      string    `yaml:"url"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Default values for a fresh configuration.
const (
	DefaultBackendURL      = "http://localhost:5000/api"
	DefaultLocale          = "en-US"
	DefaultBulkConcurrency = 1
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Settings: DefaultSettings(),
		Backends: make(map[string]*Backend),
	}
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		BackendURL:      DefaultBackendURL,
		Locale:          DefaultLocale,
		DownloadDir:     ".",
		ExportDir:       ".",
		BulkConcurrency: DefaultBulkConcurrency,
	}
}

// Timeout returns the client request timeout, 0 for none.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// settingKeys lists the keys accepted by Get and Set.
var settingKeys = map[string]func(s *Settings) *string{
	"backend_url":  func(s *Settings) *string { return &s.BackendURL },
	"locale":       func(s *Settings) *string { return &s.Locale },
	"timezone":     func(s *Settings) *string { return &s.Timezone },
	"download_dir": func(s *Settings) *string { return &s.DownloadDir },
	"export_dir":   func(s *Settings) *string { return &s.ExportDir },
}

var intSettingKeys = map[string]func(s *Settings) *int{
	"bulk_concurrency": func(s *Settings) *int { return &s.BulkConcurrency },
	"timeout_seconds":  func(s *Settings) *int { return &s.TimeoutSeconds },
	"max_retries":      func(s *Settings) *int { return &s.MaxRetries },
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settingKeys)+len(intSettingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	for k := range intSettingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a setting as text.
func (s *Settings) Get(key string) (string, error) {
	if field, ok := settingKeys[key]; ok {
		return *field(s), nil
	}
	if field, ok := intSettingKeys[key]; ok {
		return strconv.Itoa(*field(s)), nil
	}
	return "", fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

// Set parses and assigns a setting.
func (s *Settings) Set(key, value string) error {
	if field, ok := settingKeys[key]; ok {
		*field(s) = value
		return nil
	}
	if field, ok := intSettingKeys[key]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("setting %s: %q is not a number", key, value)
		}
		if n < 0 {
			return fmt.Errorf("setting %s: must not be negative", key)
		}
		*field(s) = n
		return nil
	}
	return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

// Validate checks settings that would otherwise fail later.
func (s *Settings) Validate() error {
	if s.BackendURL == "" {
		return fmt.Errorf("backend_url is empty")
	}
	if !strings.HasPrefix(s.BackendURL, "http://") && !strings.HasPrefix(s.BackendURL, "https://") {
		return fmt.Errorf("backend_url %q must start with http:// or https://", s.BackendURL)
	}
	if s.BulkConcurrency < 0 || s.TimeoutSeconds < 0 || s.MaxRetries < 0 {
		return fmt.Errorf("numeric settings must not be negative")
	}
	return nil
}

// GetBackend retrieves a discovered backend by instance name.
// Returns nil if it is not in the registry.
func (r *Registry) GetBackend(name string) *Backend {
	return r.Backends[name]
}

// EnsureBackend returns the named backend entry, creating it if needed.
func (r *Registry) EnsureBackend(name string) *Backend {
	if r.Backends == nil {
		r.Backends = make(map[string]*Backend)
	}

	if backend, exists := r.Backends[name]; exists {
		return backend
	}

	backend := &Backend{}
	r.Backends[name] = backend
	return backend
}

// UpdateBackendSeen records the URL and last-seen time of a discovered backend.
func (r *Registry) UpdateBackendSeen(name, url string) {
	backend := r.EnsureBackend(name)
	backend.LastSeen = time.Now()
	backend.URL = url
}

// SetBackendNickname sets a user-friendly nickname for a backend.
func (r *Registry) SetBackendNickname(name, nickname string) {
	r.EnsureBackend(name).Nickname = nickname
}
