package billy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// File adapts a go-billy file to fs.File. Errors other than io.EOF carry
// the operation and file name.
type File struct {
	file billy.File
	fs   *FS
	// name overrides file.Name() when set.
	name string
}

type syncer interface {
	Sync() error
}

func (f *File) fail(op string, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("billy: %s %q: %w", op, f.Name(), err)
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.fail("close", f.file.Close())
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	if f.name != "" {
		return f.name
	}
	return f.file.Name()
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	return n, f.fail("read", err)
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.file.ReadAt(p, off)
	return n, f.fail(fmt.Sprintf("read at %d", off), err)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	return pos, f.fail("seek", err)
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, f.fail("write", err)
}

// Stat describes the file through the owning filesystem; billy files do
// not expose Stat themselves.
func (f *File) Stat() (fs.FileInfo, error) {
	//nolint:wrapcheck // FS.Stat already adds context.
	return f.fs.Stat(f.Name())
}

// Sync flushes OS-backed files. In-memory files have nothing to flush.
func (f *File) Sync() error {
	if s, ok := f.file.(syncer); ok {
		return f.fail("sync", s.Sync())
	}
	return nil
}
