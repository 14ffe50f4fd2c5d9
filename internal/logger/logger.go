// Package logger holds the process-wide slog logger: a readable console
// handler on stderr, optionally mirrored as JSONL into a log file, with
// credentials and transcription text redacted from both.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ComponentKey names the attribute the console handler shows as a prefix.
const ComponentKey = "component"

const redacted = "[REDACTED]"

var (
	globalLogger *slog.Logger
	isTerminal   = term.IsTerminal
)

// Transcriptions can contain personal text, and the token guards the service.
var redactedKeys = map[string]bool{
	"raw":           true,
	"refined":       true,
	"translated":    true,
	"transcription": true,
	"data_url":      true,
	"image":         true,
}

var redactedKeyParts = []string{"token", "secret", "password", "authorization", "bearer", "text"}

var redactedValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*\b`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|secret)\b\s*[:=]\s*\S+`),
	regexp.MustCompile(`^data:[a-z]+/[a-z0-9.+-]+;base64,`),
}

func init() {
	Init(LevelWarn, nil)
}

// RedactAttr is the slog ReplaceAttr hook shared by every handler.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitive(a) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSensitive(a slog.Attr) bool {
	key := strings.ToLower(a.Key)
	if redactedKeys[key] {
		return true
	}
	for _, part := range redactedKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}

	value := a.Value.String()
	if a.Value.Kind() != slog.KindString {
		value = fmt.Sprint(a.Value.Any())
	}
	for _, re := range redactedValues {
		if value != "" && re.MatchString(value) {
			return true
		}
	}
	return false
}

// ParseLevel maps a case-insensitive level name to a slog.Level. An empty
// name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Init replaces the global logger. When logFile is set every record is
// also written there as JSON, and the console drops colour.
func Init(level slog.Level, logFile io.Writer) {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: RedactAttr}
	color := logFile == nil && isTerminal(int(os.Stderr.Fd()))

	var h slog.Handler = NewPrettyHandler(os.Stderr, opts, color)
	if logFile != nil {
		h = fanout{h, slog.NewJSONHandler(logFile, opts)}
	}
	globalLogger = slog.New(h)
	slog.SetDefault(globalLogger)
}

// L returns the global logger for components that bind their own attributes.
func L() *slog.Logger { return globalLogger }

func Debug(msg string, args ...any) { globalLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { globalLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { globalLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { globalLogger.Error(msg, args...) }
