package version

import (
	"fmt"
	"runtime"
)

// Version is the release version embedded in the binary.
// It can be overridden at build time via:
// go build -ldflags "-X github.com/oukeidos/bstudio/internal/version.Version=0.2.0"
var Version = "0.1.0"

// Commit is the git commit hash embedded in the binary.
var Commit = "unknown"

// BuildDate is the RFC3339 build timestamp embedded in the binary.
var BuildDate = "unknown"

// Info returns a multi-line version string for CLI output.
func Info() string {
	return fmt.Sprintf("bstudio %s\ncommit: %s\nbuild: %s\ngo: %s %s/%s",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the client to the transcription service.
func UserAgent() string {
	return fmt.Sprintf("bstudio/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
