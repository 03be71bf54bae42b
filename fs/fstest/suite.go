// Package fstest provides a conformance suite for fs.Filesystem
// implementations. It covers the operations transfers rely on: reading
// upload sources, creating scratch files and publishing downloads by rename.
//
// Example usage:
//
//	func TestMyFilesystem(t *testing.T) {
//	    fstest.TestSuite(t, func(t *testing.T) (fstest.Filesystem, string) {
//	        return myfs.New(), "/"
//	    })
//	}
package fstest

import (
	"os"
	"path"
	"slices"
	"testing"

	"github.com/kbcstorage/storage-go/fs"
)

// Filesystem is fs.Filesystem plus the convenience operations the suite
// uses to arrange and inspect files.
type Filesystem interface {
	fs.Filesystem
	Create(name string) (fs.File, error)
	Exists(path string) (bool, error)
	OpenFile(name string, flag int, perm os.FileMode) (fs.File, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

// NewFunc returns a fresh filesystem and an existing, empty directory on it
// that the tests may write into.
type NewFunc func(t *testing.T) (Filesystem, string)

// TestSuite runs all conformance tests against filesystems built by newFS.
func TestSuite(t *testing.T, newFS NewFunc) {
	TestSuiteWithSkip(t, newFS, nil)
}

// TestSuiteWithSkip runs the suite, skipping the named groups or tests
// (e.g. "Write/RenameReplaces").
func TestSuiteWithSkip(t *testing.T, newFS NewFunc, skip []string) {
	groups := []struct {
		name  string
		tests map[string]func(t *testing.T, fsys Filesystem, root string)
	}{
		{"Read", readTests},
		{"Write", writeTests},
	}

	for _, g := range groups {
		t.Run(g.name, func(t *testing.T) {
			if slices.Contains(skip, g.name) {
				t.Skip("skipped by provider configuration")
			}
			for name, fn := range g.tests {
				t.Run(name, func(t *testing.T) {
					if slices.Contains(skip, g.name+"/"+name) {
						t.Skip("skipped by provider configuration")
					}
					fsys, root := newFS(t)
					fn(t, fsys, root)
				})
			}
		})
	}
}

func join(root string, elem ...string) string {
	return path.Join(append([]string{root}, elem...)...)
}

func mustWrite(t *testing.T, fsys Filesystem, name string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(path.Dir(name), 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): got error %v, want nil", path.Dir(name), err)
	}
	if err := fsys.WriteFile(name, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%q): got error %v, want nil", name, err)
	}
}

func mustRead(t *testing.T, fsys Filesystem, name string) []byte {
	t.Helper()
	data, err := fsys.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%q): got error %v, want nil", name, err)
	}
	return data
}
