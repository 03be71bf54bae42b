// Package atomicfile publishes local files atomically: content is written
// to a temporary file next to the destination and renamed into place only
// once complete. Readers of the destination never observe a partial file.
package atomicfile

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kbcstorage/storage-go/fs"
)

// Mode is the permission of published files. Temporary files are created
// owner-only and widened to Mode on commit.
const Mode os.FileMode = 0o644

// File is a pending file. Exactly one of Commit or Abort publishes or
// discards it; calling Abort after Commit is a no-op.
type File struct {
	fsys  fs.Filesystem
	final string
	tmp   fs.File
	done  bool
}

// Create opens a temporary file in the directory of finalPath.
func Create(fsys fs.Filesystem, finalPath string) (*File, error) {
	tmp, err := Scratch(fsys, filepath.Dir(finalPath), filepath.Base(finalPath))
	if err != nil {
		return nil, err
	}
	return &File{fsys: fsys, final: finalPath, tmp: tmp}, nil
}

// Scratch creates a uniquely named hidden temporary file in dir. The
// caller owns its removal.
//
//nolint:ireturn // fs.File is the filesystem abstraction's handle type.
func Scratch(fsys fs.Filesystem, dir, name string) (fs.File, error) {
	prefix := fmt.Sprintf(".%s.%s.", name, uuid.NewString()[:8])
	tmp, err := fsys.TempFile(dir, prefix)
	if err != nil {
		return nil, fmt.Errorf("atomicfile: temp file in %q: %w", dir, err)
	}
	return tmp, nil
}

// Write appends to the temporary file.
func (f *File) Write(p []byte) (int, error) {
	//nolint:wrapcheck // io.Writer interface contract
	return f.tmp.Write(p)
}

// Name returns the destination path.
func (f *File) Name() string {
	return f.final
}

// TempName returns the path of the temporary file.
func (f *File) TempName() string {
	return f.tmp.Name()
}

// Commit flushes and closes the temporary file and renames it over the
// destination. On failure the temporary file is removed.
func (f *File) Commit() error {
	if f.done {
		return fmt.Errorf("atomicfile: %q already finished", f.final)
	}
	f.done = true

	if err := f.tmp.Sync(); err != nil {
		_ = f.tmp.Close()
		_ = f.fsys.Remove(f.tmp.Name())
		return fmt.Errorf("atomicfile: sync %q: %w", f.tmp.Name(), err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = f.fsys.Remove(f.tmp.Name())
		return fmt.Errorf("atomicfile: close %q: %w", f.tmp.Name(), err)
	}
	if err := f.fsys.Chmod(f.tmp.Name(), Mode); err != nil {
		_ = f.fsys.Remove(f.tmp.Name())
		return fmt.Errorf("atomicfile: chmod %q: %w", f.tmp.Name(), err)
	}
	if err := f.fsys.Rename(f.tmp.Name(), f.final); err != nil {
		_ = f.fsys.Remove(f.tmp.Name())
		return fmt.Errorf("atomicfile: publish %q: %w", f.final, err)
	}
	return nil
}

// Abort discards the temporary file.
func (f *File) Abort() error {
	if f.done {
		return nil
	}
	f.done = true

	closeErr := f.tmp.Close()
	removeErr := f.fsys.Remove(f.tmp.Name())
	if removeErr != nil {
		removeErr = fmt.Errorf("atomicfile: remove %q: %w", f.tmp.Name(), removeErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("atomicfile: close %q: %w", f.tmp.Name(), closeErr)
	}
	return stderrors.Join(closeErr, removeErr)
}
