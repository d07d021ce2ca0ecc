package directories

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDirCreatesAppDir(t *testing.T) {
	base := t.TempDir()
	var dir string
	got := getDir(&dir, base, "TestDir")
	if want := filepath.Join(base, "memorymap"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestGetDirIsCached(t *testing.T) {
	dir := "/already/resolved"
	if got := getDir(&dir, t.TempDir(), "TestDir"); got != "/already/resolved" {
		t.Fatalf("got %q", got)
	}
}
