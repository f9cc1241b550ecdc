// Package session holds the authenticated identity: a bearer token and the
// user record it was issued to.
//
// A Store persists the session as YAML next to the config file. A Guard is
// what the rest of the program receives: it supplies the token to the
// backend client and, when the backend rejects it, clears the stored session
// and hands control to the host through OnExpired.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/config"
	"github.com/muurk/espfw/internal/models"
)

const sessionFile = "session.yaml"

// Session is a stored login.
type Session struct {
	Token string       `yaml:"token"`
	User  *models.User `yaml:"user,omitempty"`
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// Store reads and writes a session file.
type Store struct {
	Path string
}

// DefaultStore returns the store in the config directory.
func DefaultStore() (*Store, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{Path: filepath.Join(dir, sessionFile)}, nil
}

// Load returns the stored session. A missing file yields an empty session.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(sess *Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return config.WriteFileAtomic(s.Path, data, 0600)
}

// Clear removes both the token and the user record.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Guard is the injected session context.
type Guard struct {
	store *Store

	// OnExpired is called once after a rejected token clears the session.
	OnExpired func()

	mu      sync.Mutex
	current *Session
	expired bool
}

// NewGuard loads the current session from store.
func NewGuard(store *Store, onExpired func()) (*Guard, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Guard{store: store, current: sess, OnExpired: onExpired}, nil
}

// Token implements backend.TokenSource.
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return ""
	}
	return g.current.Token
}

// User returns the logged-in user, or nil.
func (g *Guard) User() *models.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil
	}
	return g.current.User
}

// LoggedIn reports whether a token is present.
func (g *Guard) LoggedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current.Valid()
}

// Login stores a fresh session.
func (g *Guard) Login(token string, user *models.User) error {
	sess := &Session{Token: token, User: user}
	if err := g.store.Save(sess); err != nil {
		return err
	}
	g.mu.Lock()
	g.current = sess
	g.expired = false
	g.mu.Unlock()
	return nil
}

// Logout clears the stored session without calling OnExpired.
func (g *Guard) Logout() error {
	g.mu.Lock()
	g.current = &Session{}
	g.mu.Unlock()
	return g.store.Clear()
}

// Expire clears the session and calls OnExpired the first time.
func (g *Guard) Expire() error {
	g.mu.Lock()
	g.current = &Session{}
	first := !g.expired
	g.expired = true
	g.mu.Unlock()

	err := g.store.Clear()
	if first && g.OnExpired != nil {
		g.OnExpired()
	}
	return err
}

// Expired reports whether Expire has run since the last Login.
func (g *Guard) Expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired
}

// Check expires the session when err is an authentication failure and
// reports whether it did.
func (g *Guard) Check(err error) bool {
	if !backend.IsAuthError(err) {
		return false
	}
	_ = g.Expire()
	return true
}

var _ backend.TokenSource = (*Guard)(nil)
