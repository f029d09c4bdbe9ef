package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/ltarchiver-test")
	if d.Root() != "/tmp/ltarchiver-test" {
		t.Errorf("expected root /tmp/ltarchiver-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if d.Root() == "" {
		t.Fatal("expected non-empty root")
	}
	if filepath.Base(d.Root()) != "ltarchiver" {
		t.Errorf("expected root to end with 'ltarchiver', got %s", d.Root())
	}
}

func TestRecordbookPath(t *testing.T) {
	d := New("/data")
	if got := d.RecordbookPath(); got != "/data/recordbook.txt" {
		t.Errorf("got %s", got)
	}
}

func TestChecksumPath(t *testing.T) {
	d := New("/data")
	if got := d.ChecksumPath(); got != "/data/checksum.txt" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "ltarchiver")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}

	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}
