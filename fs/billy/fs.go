// Package billy implements the fs.Filesystem interface on top of go-billy,
// backing downloads with the OS filesystem in production and an in-memory
// filesystem in tests.
package billy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/kbcstorage/storage-go/fs"
)

// FS implements the Filesystem interface using go-billy.
type FS struct {
	fs billy.Filesystem

	// mu serializes namespace operations on filesystems that are not safe
	// for concurrent use. Nil for the OS filesystem.
	mu *sync.Mutex
}

func (b *FS) lock() func() {
	if b.mu == nil {
		return func() {}
	}
	b.mu.Lock()
	return b.mu.Unlock
}

var _ parentfs.Filesystem = (*FS)(nil)

// Create implements Filesystem.Create.
//
//nolint:ireturn // returns the fs.File abstraction.
func (b *FS) Create(name string) (parentfs.File, error) {
	defer b.lock()()

	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("billy: create %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	defer b.lock()()

	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	defer b.lock()()

	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// Open implements Filesystem.Open.
//
//nolint:ireturn // returns the fs.File abstraction.
func (b *FS) Open(name string) (parentfs.File, error) {
	defer b.lock()()

	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// OpenFile implements Filesystem.OpenFile.
//
//nolint:ireturn // returns the fs.File abstraction.
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (parentfs.File, error) {
	defer b.lock()()

	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("billy: openfile %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// ReadDir implements Filesystem.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	defer b.lock()()

	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", dirname, err)
	}
	return list, nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	defer b.lock()()

	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(name string) error {
	defer b.lock()()

	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("billy: remove %q: %w", name, err)
	}
	return nil
}

// Rename implements Filesystem.Rename.
func (b *FS) Rename(oldpath, newpath string) error {
	defer b.lock()()

	if err := b.fs.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("billy: rename %q -> %q: %w", oldpath, newpath, err)
	}
	return nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	defer b.lock()()

	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return info, nil
}

// TempFile implements Filesystem.TempFile. The file is created inside dir so
// that a later Rename stays on the same device. Name() of the result is
// dir joined with the generated base name, whatever form the backend uses.
//
//nolint:ireturn // returns the fs.File abstraction.
func (b *FS) TempFile(dir, prefix string) (parentfs.File, error) {
	defer b.lock()()

	f, err := b.fs.TempFile(dir, prefix)
	if err != nil {
		return nil, fmt.Errorf("billy: tempfile dir=%q prefix=%q: %w", dir, prefix, err)
	}
	return &File{
		file: f,
		fs:   b,
		name: filepath.Join(dir, filepath.Base(f.Name())),
	}, nil
}

// Chmod implements Filesystem.Chmod. Backends without permission bits
// accept it as a no-op.
func (b *FS) Chmod(name string, mode os.FileMode) error {
	defer b.lock()()

	change, ok := b.fs.(billy.Change)
	if !ok {
		return nil
	}
	err := change.Chmod(name, mode)
	switch {
	case err == nil, errors.Is(err, billy.ErrNotSupported):
		return nil
	default:
		return fmt.Errorf("billy: chmod %q: %w", name, err)
	}
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	defer b.lock()()

	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", filename, err)
	}
	return nil
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // returning interface here is intentional to expose the adapter target.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// NewFS creates a new FS using the given go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{
		fs: fsys,
	}
}

// NewInMemoryFS creates a new in-memory filesystem. It is safe for
// concurrent use, unlike a bare memfs.
func NewInMemoryFS() *FS {
	return &FS{
		fs: memfs.New(),
		mu: &sync.Mutex{},
	}
}

// NewOSFS creates a new OS filesystem rooted at path.
func NewOSFS(path string) *FS {
	return &FS{
		fs: osfs.New(path),
	}
}
