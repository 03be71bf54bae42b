package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// GetAbs returns an absolute version of path, resolving it against the
// working directory when it is relative.
func GetAbs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("fs: abs %q: %w", path, err)
	}
	return abs, nil
}

// EnsureDir creates dir on fsys if it does not exist yet and fails when the
// path exists but is not a directory.
func EnsureDir(fsys Filesystem, dir string) error {
	info, err := fsys.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("fs: %q is not a directory", dir)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fsys.MkdirAll(dir, 0o755)
	default:
		return err
	}
}
