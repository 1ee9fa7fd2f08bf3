package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given contents under dir, creating
// intermediate directories as needed, and returns its absolute path.
func WriteFile(t testing.TB, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs %s: %v", path, err)
	}
	return abs
}

// Touch creates an empty file and returns its absolute path.
func Touch(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteFile(t, dir, name, "")
}
