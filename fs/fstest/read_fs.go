package fstest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"slices"
	"testing"
)

var readTests = map[string]func(t *testing.T, fsys Filesystem, root string){
	"OpenAndRead":   testOpenAndRead,
	"ReadAtAndSeek": testReadAtAndSeek,
	"StatAndExists": testStatAndExists,
	"ReadDir":       testReadDir,
	"OpenMissing":   testOpenMissing,
	"StatDir":       testStatDir,
}

func testOpenAndRead(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "read.txt")
	want := []byte("hello, storage")
	mustWrite(t, fsys, name, want)

	f, err := fsys.Open(name)
	if err != nil {
		t.Fatalf("Open(%q): got error %v, want nil", name, err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll(): got error %v, want nil", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadAll(): got %q, want %q", got, want)
	}
}

func testReadAtAndSeek(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "seek.bin")
	mustWrite(t, fsys, name, []byte("0123456789"))

	f, err := fsys.Open(name)
	if err != nil {
		t.Fatalf("Open(%q): got error %v, want nil", name, err)
	}
	defer f.Close()

	buf := make([]byte, 3)
	if _, err := f.ReadAt(buf, 4); err != nil {
		t.Fatalf("ReadAt(4): got error %v, want nil", err)
	}
	if string(buf) != "456" {
		t.Errorf("ReadAt(4): got %q, want %q", buf, "456")
	}

	if _, err := f.Seek(7, io.SeekStart); err != nil {
		t.Fatalf("Seek(7): got error %v, want nil", err)
	}
	rest, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll(): got error %v, want nil", err)
	}
	if string(rest) != "789" {
		t.Errorf("after Seek(7): got %q, want %q", rest, "789")
	}
}

func testStatAndExists(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "stat.txt")
	mustWrite(t, fsys, name, []byte("12345"))

	info, err := fsys.Stat(name)
	if err != nil {
		t.Fatalf("Stat(%q): got error %v, want nil", name, err)
	}
	if info.Size() != 5 || info.IsDir() {
		t.Errorf("Stat(%q): got size %d dir %v, want size 5 file", name, info.Size(), info.IsDir())
	}

	ok, err := fsys.Exists(name)
	if err != nil || !ok {
		t.Errorf("Exists(%q): got %v, %v, want true, nil", name, ok, err)
	}
	ok, err = fsys.Exists(join(root, "nope.txt"))
	if err != nil || ok {
		t.Errorf("Exists(missing): got %v, %v, want false, nil", ok, err)
	}
}

func testReadDir(t *testing.T, fsys Filesystem, root string) {
	dir := join(root, "listing")
	for _, n := range []string{"b.txt", "a.txt", "c.txt"} {
		mustWrite(t, fsys, join(dir, n), []byte(n))
	}
	if err := fsys.MkdirAll(join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll(sub): got error %v, want nil", err)
	}

	infos, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%q): got error %v, want nil", dir, err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	slices.Sort(names)
	want := []string{"a.txt", "b.txt", "c.txt", "sub"}
	if !slices.Equal(names, want) {
		t.Errorf("ReadDir(%q): got %v, want %v", dir, names, want)
	}
}

func testOpenMissing(t *testing.T, fsys Filesystem, root string) {
	name := join(root, "missing.txt")
	if _, err := fsys.Open(name); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(%q): got error %v, want os.ErrNotExist", name, err)
	}
	if _, err := fsys.Stat(name); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(%q): got error %v, want os.ErrNotExist", name, err)
	}
}

func testStatDir(t *testing.T, fsys Filesystem, root string) {
	dir := join(root, "adir")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): got error %v, want nil", dir, err)
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		t.Fatalf("Stat(%q): got error %v, want nil", dir, err)
	}
	if !info.IsDir() {
		t.Errorf("Stat(%q): got file, want directory", dir)
	}
}
