// Package fs defines the filesystem abstraction used for local transfer
// endpoints: upload sources, download targets and their temporary files.
package fs

import "io/fs"

// File is an open handle on a transfer source or target.
type File interface {
	Close() error
	Name() string
	Read(p []byte) (n int, err error)
	ReadAt(p []byte, off int64) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Stat() (fs.FileInfo, error)
	Write(p []byte) (n int, err error)
	// Sync flushes written content to stable storage. Backends without
	// durable storage return nil.
	Sync() error
}
