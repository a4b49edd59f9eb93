package mmap

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenReadClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("memory mapped track archive")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if len(f.Data) != len(content) {
		t.Fatalf("len(Data) = %d, want %d", len(f.Data), len(content))
	}

	buf := make([]byte, 6)
	n, err := f.ReadAt(buf, 7)
	if err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if n != 6 || string(buf) != "mapped" {
		t.Errorf("ReadAt() = %q, want %q", buf[:n], "mapped")
	}

	// Read past the end returns io.EOF.
	if _, err := f.ReadAt(buf, int64(len(content))); !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt() past end error = %v, want io.EOF", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	if len(f.Data) != 0 {
		t.Errorf("len(Data) = %d, want 0", len(f.Data))
	}
	if _, err := f.ReadAt(make([]byte, 1), 0); !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt() on empty file error = %v, want io.EOF", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}
