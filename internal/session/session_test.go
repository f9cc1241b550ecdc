package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "session.yaml")}
}

func TestStore_SaveLoadClear(t *testing.T) {
	store := newStore(t)

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Valid() {
		t.Error("missing file should load as an empty session")
	}

	user := &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: "admin"}
	if err := store.Save(&Session{Token: "jwt", User: user}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	sess, err = store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Token != "jwt" || sess.User == nil || sess.User.Email != "ada@example.com" {
		t.Errorf("loaded = %+v", sess)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(store.Path); !os.IsNotExist(err) {
		t.Error("session file should be removed")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestGuard_LoginLogout(t *testing.T) {
	store := newStore(t)
	guard, err := NewGuard(store, nil)
	if err != nil {
		t.Fatalf("NewGuard() error = %v", err)
	}
	if guard.LoggedIn() || guard.Token() != "" || guard.User() != nil {
		t.Error("fresh guard should have no session")
	}

	if err := guard.Login("jwt", &models.User{Name: "Ada"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !guard.LoggedIn() || guard.Token() != "jwt" || guard.User().Name != "Ada" {
		t.Errorf("after login: token=%q user=%+v", guard.Token(), guard.User())
	}

	reloaded, err := NewGuard(store, nil)
	if err != nil {
		t.Fatalf("NewGuard() error = %v", err)
	}
	if reloaded.Token() != "jwt" {
		t.Errorf("reloaded token = %q", reloaded.Token())
	}

	if err := guard.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if guard.LoggedIn() {
		t.Error("guard should be logged out")
	}
}

func TestGuard_CheckExpiresOnAuthError(t *testing.T) {
	store := newStore(t)
	calls := 0
	guard, _ := NewGuard(store, func() { calls++ })
	if err := guard.Login("jwt", &models.User{Name: "Ada"}); err != nil {
		t.Fatal(err)
	}

	if guard.Check(errors.New("network down")) {
		t.Error("Check() should ignore non-auth errors")
	}
	if guard.Check(nil) {
		t.Error("Check(nil) should be false")
	}
	if !guard.LoggedIn() {
		t.Fatal("session should survive non-auth errors")
	}

	authErr := fmt.Errorf("devices: %w", backend.NewAuthError("expired"))
	if !guard.Check(authErr) {
		t.Fatal("Check() should report auth errors")
	}
	if guard.LoggedIn() || guard.User() != nil {
		t.Error("token and user should both be cleared")
	}
	if !guard.Expired() {
		t.Error("Expired() should be true")
	}
	if _, err := os.Stat(store.Path); !os.IsNotExist(err) {
		t.Error("stored session should be removed")
	}

	guard.Check(authErr)
	if calls != 1 {
		t.Errorf("OnExpired calls = %d, want 1", calls)
	}

	if err := guard.Login("jwt2", nil); err != nil {
		t.Fatal(err)
	}
	guard.Check(authErr)
	if calls != 2 {
		t.Errorf("OnExpired calls after re-login = %d, want 2", calls)
	}
}
