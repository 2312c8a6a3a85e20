// Package testutil holds helpers shared by the tankobon tests.
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestEnv is a temporary directory that tests write cache databases, CSV
// lookups, edition files and covers into. Paths handed out by it never
// leave the directory.
type TestEnv struct {
	t    *testing.T
	root string
}

// NewTestEnv creates a TestEnv removed when the test completes.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	return &TestEnv{t: t, root: t.TempDir()}
}

// RootDir returns the directory backing the environment.
func (e *TestEnv) RootDir() string {
	return e.root
}

// Path joins elem onto the root and fails the test if the result escapes it.
func (e *TestEnv) Path(elem ...string) string {
	e.t.Helper()

	p := filepath.Clean(filepath.Join(append([]string{e.root}, elem...)...))
	if p != e.root && !strings.HasPrefix(p, e.root+string(filepath.Separator)) {
		e.t.Fatalf("path %q escapes test directory %q", p, e.root)
	}
	return p
}

// WriteFile writes content to name, creating parent directories, and
// returns the absolute path.
func (e *TestEnv) WriteFile(name string, content []byte) string {
	e.t.Helper()

	p := e.Path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		e.t.Fatalf("creating directory for %s: %v", name, err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		e.t.Fatalf("writing %s: %v", name, err)
	}
	return p
}

// WriteFileString is WriteFile for string content.
func (e *TestEnv) WriteFileString(name, content string) string {
	e.t.Helper()
	return e.WriteFile(name, []byte(content))
}

// WriteCSV writes rows (header first) as a CSV file and returns its path.
func (e *TestEnv) WriteCSV(name string, rows ...[]string) string {
	e.t.Helper()

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.WriteAll(rows); err != nil {
		e.t.Fatalf("encoding %s: %v", name, err)
	}
	return e.WriteFileString(name, b.String())
}

// ReadFileString returns the content of name.
func (e *TestEnv) ReadFileString(name string) string {
	e.t.Helper()

	data, err := os.ReadFile(e.Path(name))
	if err != nil {
		e.t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

// FileExists reports whether name exists.
func (e *TestEnv) FileExists(name string) bool {
	_, err := os.Stat(e.Path(name))
	return err == nil
}

// ListFiles returns the names of the files directly under dir, sorted.
func (e *TestEnv) ListFiles(dir string) []string {
	e.t.Helper()

	entries, err := os.ReadDir(e.Path(dir))
	if err != nil {
		e.t.Fatalf("listing %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}
