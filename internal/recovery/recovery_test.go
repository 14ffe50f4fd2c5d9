package recovery

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/oukeidos/bstudio/internal/input"
)

func validLog() *SessionLog {
	return &SessionLog{
		LogVersion:     CurrentLogVersion,
		Mode:           "digital",
		TargetLanguage: "tamil",
		Total:          3,
		Failed: []Entry{
			{Path: "a.png", Hash: "sha256:00", Kind: "transport_unreachable", Message: "down"},
		},
		Status: StatusPartialSuccess,
	}
}

func TestSaveSessionLog_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	path := filepath.Join(t.TempDir(), "bstudio_recovery.json")
	log := validLog()
	log.StatusReason = "canceled"

	if err := SaveSessionLog(path, log); err != nil {
		t.Fatalf("SaveSessionLog failed: %v", err)
	}

	loaded, err := LoadSessionLog(path)
	if err != nil {
		t.Fatalf("LoadSessionLog failed: %v", err)
	}
	if loaded.StatusReason != "canceled" {
		t.Fatalf("expected StatusReason to persist, got %q", loaded.StatusReason)
	}
	if len(loaded.Failed) != 1 || loaded.Failed[0].Path != "a.png" {
		t.Fatalf("unexpected failed entries: %+v", loaded.Failed)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("expected permission 0600, got %o", mode)
	}
}

func TestLoadSessionLog_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSessionLog(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SessionLog)
		wantErr string
	}{
		{"valid", func(*SessionLog) {}, ""},
		{"defaults version", func(l *SessionLog) { l.LogVersion = 0 }, ""},
		{"no target", func(l *SessionLog) { l.TargetLanguage = "" }, ""},
		{"future version", func(l *SessionLog) { l.LogVersion = 99 }, "unsupported log_version"},
		{"bad mode", func(l *SessionLog) { l.Mode = "laser" }, "mode"},
		{"bad language", func(l *SessionLog) { l.TargetLanguage = "xx" }, "unsupported target language"},
		{"empty failed", func(l *SessionLog) { l.Failed = nil }, "failed list is empty"},
		{"total too small", func(l *SessionLog) { l.Total = 0 }, "invalid total"},
		{"empty path", func(l *SessionLog) { l.Failed[0].Path = "" }, "empty path"},
		{"absolute path", func(l *SessionLog) { l.Failed[0].Path = filepath.Join(string(filepath.Separator), "tmp", "a.png") }, "must be relative"},
		{"bad hash", func(l *SessionLog) { l.Failed[0].Hash = "md5:00" }, "invalid hash"},
		{"no status", func(l *SessionLog) { l.Status = "" }, "status is empty"},
		{"bad reason", func(l *SessionLog) { l.StatusReason = "crashed" }, "invalid status_reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := validLog()
			tt.mutate(log)
			err := log.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParameters(t *testing.T) {
	params, err := validLog().Parameters()
	if err != nil {
		t.Fatalf("Parameters failed: %v", err)
	}
	if params.Mode != input.ModeDigitalDots || params.TargetLanguage != "tamil" {
		t.Fatalf("unexpected parameters: %+v", params)
	}
}

func TestGenerateRecoveryPath(t *testing.T) {
	dir := t.TempDir()
	first, err := GenerateRecoveryPath(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "bstudio_recovery.json" {
		t.Fatalf("unexpected first path: %s", first)
	}
	if err := os.WriteFile(first, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	second, err := GenerateRecoveryPath(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "bstudio_recovery_1.json" {
		t.Fatalf("unexpected second path: %s", second)
	}
}

func TestHashFileHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := HashFileHex(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCalculateStatus(t *testing.T) {
	tests := []struct {
		failed, total int
		want          string
	}{
		{0, 3, StatusSuccess},
		{1, 3, StatusPartialSuccess},
		{3, 3, StatusFailure},
	}
	for _, tt := range tests {
		if got := CalculateStatus(tt.failed, tt.total); got != tt.want {
			t.Errorf("CalculateStatus(%d, %d) = %q, want %q", tt.failed, tt.total, got, tt.want)
		}
	}
}

func TestRelativePathRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "bstudio_recovery.json")
	image := filepath.Join(dir, "scans", "page1.png")

	rel, err := ToRelativePath(logPath, image)
	if err != nil {
		t.Fatal(err)
	}
	if rel != filepath.Join("scans", "page1.png") {
		t.Fatalf("unexpected relative path: %s", rel)
	}
	if got := ResolvePath(logPath, rel); got != image {
		t.Fatalf("ResolvePath = %s, want %s", got, image)
	}
}

func TestAddFailure(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "bstudio_recovery.json")
	image := filepath.Join(dir, "page.png")
	if err := os.WriteFile(image, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}

	log := NewSessionLog(input.Parameters{Mode: input.ModeEmbossedPhoto, TargetLanguage: "hindi"}, 2)
	if err := log.AddFailure(logPath, image, "timeout", "too slow"); err != nil {
		t.Fatal(err)
	}
	if err := log.AddFailure(logPath, filepath.Join(dir, "gone.png"), "no_image", "missing"); err != nil {
		t.Fatal(err)
	}

	if log.Status != StatusFailure {
		t.Fatalf("expected %q, got %q", StatusFailure, log.Status)
	}
	if log.Failed[0].Path != "page.png" || !strings.HasPrefix(log.Failed[0].Hash, "sha256:") {
		t.Fatalf("unexpected first entry: %+v", log.Failed[0])
	}
	if log.Failed[1].Hash != "" {
		t.Fatalf("missing file should have no hash, got %q", log.Failed[1].Hash)
	}
	if err := log.Validate(); err != nil {
		t.Fatalf("log should validate: %v", err)
	}
	params, err := log.Parameters()
	if err != nil || params.Mode != input.ModeEmbossedPhoto {
		t.Fatalf("unexpected parameters %+v (%v)", params, err)
	}
}
