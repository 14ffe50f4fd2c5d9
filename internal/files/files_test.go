package files

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.jpg")
	if err := AtomicWrite(path, []byte("first"), 0600); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if err := AtomicWrite(path, []byte("second"), 0600); err != nil {
		t.Fatalf("AtomicWrite replace failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected replaced content, got %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRejectSymlinkPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink not permitted on Windows")
	}
	tmp := t.TempDir()
	target := filepath.Join(tmp, "target.jpg")
	if err := os.WriteFile(target, []byte("original"), 0600); err != nil {
		t.Fatalf("write target: %v", err)
	}
	realDir := filepath.Join(tmp, "real", "nested")
	if err := os.MkdirAll(realDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(tmp, "link.jpg")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(tmp, "real"), filepath.Join(tmp, "linkdir")); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}

	cases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"plain new file", filepath.Join(tmp, "new.jpg"), false},
		{"missing parents", filepath.Join(tmp, "a", "b", "c.jpg"), false},
		{"symlink target", filepath.Join(tmp, "link.jpg"), true},
		{"symlink ancestor", filepath.Join(tmp, "linkdir", "nested", "out.jpg"), true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RejectSymlinkPath(tc.path)
			if (err != nil) != tc.wantErr {
				t.Fatalf("RejectSymlinkPath(%q) = %v, wantErr %v", tc.path, err, tc.wantErr)
			}
		})
	}

	if err := AtomicWrite(filepath.Join(tmp, "link.jpg"), []byte("new"), 0600); err == nil {
		t.Fatalf("expected AtomicWrite to reject symlink")
	}
	data, _ := os.ReadFile(target)
	if string(data) != "original" {
		t.Fatalf("target modified via symlink: %s", data)
	}
}

func TestSafePath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "scan_segmentation.jpg")

	got, changed, err := SafePath(path)
	if err != nil || changed || got != path {
		t.Fatalf("SafePath(new) = (%q, %v, %v)", got, changed, err)
	}

	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, changed, err = SafePath(path)
	if err != nil {
		t.Fatalf("SafePath failed: %v", err)
	}
	if !changed || got != filepath.Join(tmpDir, "scan_segmentation_1.jpg") {
		t.Fatalf("SafePath(existing) = (%q, %v)", got, changed)
	}
}

func TestSegmentationPath(t *testing.T) {
	got := SegmentationPath("", filepath.Join("in", "page.png"), "")
	want := filepath.Join("in", "page_segmentation.jpg")
	if got != want {
		t.Fatalf("SegmentationPath = %q, want %q", got, want)
	}
	got = SegmentationPath("out", "page.png", ".png")
	if got != filepath.Join("out", "page_segmentation.png") {
		t.Fatalf("SegmentationPath with dir = %q", got)
	}
}
