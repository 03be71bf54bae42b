package fstest

import (
	"errors"
	"os"
	"path"
	"strings"
	"testing"
)

var writeTests = map[string]func(t *testing.T, fsys Filesystem, root string){
	"CreateAndWrite":   testCreateAndWrite,
	"MkdirAllNested":   testMkdirAllNested,
	"OpenFileTruncate": testOpenFileTruncate,
	"RenameReplaces":   testRenameReplaces,
	"TempFileInDir":    testTempFileInDir,
	"Remove":           testRemove,
}

func testCreateAndWrite(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "created.txt")

	f, err := fsys.Create(name)
	if err != nil {
		t.Fatalf("Create(%q): got error %v, want nil", name, err)
	}
	if _, err := f.Write([]byte("first")); err != nil {
		_ = f.Close()
		t.Fatalf("Write(): got error %v, want nil", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close(): got error %v, want nil", err)
	}

	if got := mustRead(t, fsys, name); string(got) != "first" {
		t.Errorf("ReadFile(%q): got %q, want %q", name, got, "first")
	}

	// Create truncates an existing file.
	f, err = fsys.Create(name)
	if err != nil {
		t.Fatalf("Create(%q) again: got error %v, want nil", name, err)
	}
	_ = f.Close()
	if got := mustRead(t, fsys, name); len(got) != 0 {
		t.Errorf("ReadFile(%q) after re-create: got %q, want empty", name, got)
	}
}

func testMkdirAllNested(t *testing.T, fsys Filesystem, root string) {
	dir := join(root, "a", "b", "c")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): got error %v, want nil", dir, err)
	}
	// Repeating is a no-op.
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q) again: got error %v, want nil", dir, err)
	}
	info, err := fsys.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("Stat(%q): got %v, %v, want directory", dir, info, err)
	}
}

func testOpenFileTruncate(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "trunc.txt")
	mustWrite(t, fsys, name, []byte("a long original body"))

	f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(%q): got error %v, want nil", name, err)
	}
	if _, err := f.Write([]byte("short")); err != nil {
		_ = f.Close()
		t.Fatalf("Write(): got error %v, want nil", err)
	}
	_ = f.Close()

	if got := mustRead(t, fsys, name); string(got) != "short" {
		t.Errorf("ReadFile(%q): got %q, want %q", name, got, "short")
	}
}

func testRenameReplaces(t *testing.T, fsys Filesystem, root string) {
	src := join(root, "incoming.tmp")
	dst := join(root, "published.csv")
	mustWrite(t, fsys, dst, []byte("stale"))
	mustWrite(t, fsys, src, []byte("fresh"))

	if err := fsys.Rename(src, dst); err != nil {
		t.Fatalf("Rename(%q, %q): got error %v, want nil", src, dst, err)
	}
	if got := mustRead(t, fsys, dst); string(got) != "fresh" {
		t.Errorf("ReadFile(%q): got %q, want %q", dst, got, "fresh")
	}
	if ok, _ := fsys.Exists(src); ok {
		t.Errorf("Exists(%q) after rename: got true, want false", src)
	}
}

func testTempFileInDir(t *testing.T, fsys Filesystem, root string) {
	f, err := fsys.TempFile(root, ".scratch-")
	if err != nil {
		t.Fatalf("TempFile(%q): got error %v, want nil", root, err)
	}
	name := f.Name()
	if _, err := f.Write([]byte("partial")); err != nil {
		_ = f.Close()
		t.Fatalf("Write(): got error %v, want nil", err)
	}
	if info, err := f.Stat(); err != nil || info.Size() != int64(len("partial")) {
		t.Errorf("Stat() on temp file: got %v, %v, want size %d", info, err, len("partial"))
	}
	_ = f.Close()

	if err := fsys.Chmod(name, 0o644); err != nil {
		t.Errorf("Chmod(%q): got error %v, want nil", name, err)
	}
	if path.Dir(name) != root || !strings.HasPrefix(path.Base(name), ".scratch-") {
		t.Errorf("TempFile name %q: want a .scratch- file in %q", name, root)
	}
	if got := mustRead(t, fsys, name); string(got) != "partial" {
		t.Errorf("ReadFile(%q): got %q, want %q", name, got, "partial")
	}

	other, err := fsys.TempFile(root, ".scratch-")
	if err != nil {
		t.Fatalf("second TempFile: got error %v, want nil", err)
	}
	defer other.Close()
	if other.Name() == name {
		t.Errorf("TempFile returned %q twice", name)
	}
}

func testRemove(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "gone.txt")
	mustWrite(t, fsys, name, []byte("x"))

	if err := fsys.Remove(name); err != nil {
		t.Fatalf("Remove(%q): got error %v, want nil", name, err)
	}
	if _, err := fsys.Stat(name); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(%q) after remove: got %v, want os.ErrNotExist", name, err)
	}
	if err := fsys.Remove(name); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Remove(%q) twice: got %v, want os.ErrNotExist", name, err)
	}
}
