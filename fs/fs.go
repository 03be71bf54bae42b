package fs

import "os"

// Filesystem is the set of operations transfers perform on local storage.
// Rename must replace the destination atomically where the backend allows it;
// downloads rely on it to publish completed files.
type Filesystem interface {
	Chmod(name string, mode os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Open(name string) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	TempFile(dir, prefix string) (File, error)
}
