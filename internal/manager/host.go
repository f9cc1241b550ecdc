package manager

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Confirmer gates destructive operations.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Notifier shows a blocking notice. During bulk runs it may be called from
// a goroutine other than the caller's.
type Notifier interface {
	Notify(message string)
}

// Saver stores a produced file (a download or an export) under name and
// returns where it went. write streams the content.
type Saver interface {
	Save(name string, write func(w io.Writer) error) (string, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(message string)

// Notify implements Notifier.
func (f NotifyFunc) Notify(message string) { f(message) }

// DirSaver writes files into Dir. An existing file is never overwritten; the
// new one gets a " (n)" suffix the way browsers do.
type DirSaver struct {
	Dir string
}

// Save implements Saver.
func (s DirSaver) Save(name string, write func(w io.Writer) error) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".espfw-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	path, err := claimPath(tmp.Name(), filepath.Join(dir, cleanName(name)))
	os.Remove(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}

func cleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "firmware.bin"
	}
	return name
}

// claimPath links tmp to path, or to the first free "base (n).ext" when path
// is taken. The link fails if the name exists, so concurrent saves of the
// same name never replace each other.
func claimPath(tmp, path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 1; ; n++ {
		err := os.Link(tmp, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
}
