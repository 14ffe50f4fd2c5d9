// Package recovery records the images of a batch that produced no result,
// together with the parameters they were sent with, so they can be
// resubmitted later.
package recovery

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/language"
)

const CurrentLogVersion = 1

const (
	StatusSuccess        = "Success"
	StatusPartialSuccess = "Partial Success"
	StatusFailure        = "Failure"
)

// SessionLog is the on-disk recovery record.
type SessionLog struct {
	LogVersion     int     `json:"log_version"`
	Mode           string  `json:"mode"`
	TargetLanguage string  `json:"target_lang,omitempty"`
	Total          int     `json:"total"`
	Failed         []Entry `json:"failed"`
	Status         string  `json:"status"`
	StatusReason   string  `json:"status_reason,omitempty"`
}

// Entry is one image that needs resubmitting. Path is relative to the log
// file.
type Entry struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validate checks that the log is consistent and safe to resume.
func (log *SessionLog) Validate() error {
	if log.LogVersion == 0 {
		log.LogVersion = CurrentLogVersion
	}
	if log.LogVersion != CurrentLogVersion {
		return fmt.Errorf("unsupported log_version: %d", log.LogVersion)
	}
	if _, err := input.ParseMode(log.Mode); err != nil {
		return err
	}
	if log.TargetLanguage != "" {
		if _, ok := language.GetLanguage(log.TargetLanguage); !ok {
			return fmt.Errorf("unsupported target language: %s", log.TargetLanguage)
		}
	}
	if len(log.Failed) == 0 {
		return fmt.Errorf("failed list is empty")
	}
	if log.Total < len(log.Failed) {
		return fmt.Errorf("invalid total: %d (failed %d)", log.Total, len(log.Failed))
	}
	for _, e := range log.Failed {
		if e.Path == "" {
			return fmt.Errorf("failed entry has an empty path")
		}
		if filepath.IsAbs(e.Path) {
			return fmt.Errorf("path must be relative, not absolute: %s", e.Path)
		}
		if e.Hash != "" && !strings.HasPrefix(e.Hash, "sha256:") {
			return fmt.Errorf("invalid hash for %s: %s", e.Path, e.Hash)
		}
	}
	if log.Status == "" {
		return fmt.Errorf("session status is empty")
	}
	if log.StatusReason != "" && log.StatusReason != "canceled" {
		return fmt.Errorf("invalid status_reason: %s", log.StatusReason)
	}
	return nil
}

// Parameters returns the submission parameters the failed images used.
func (log *SessionLog) Parameters() (input.Parameters, error) {
	mode, err := input.ParseMode(log.Mode)
	if err != nil {
		return input.Parameters{}, err
	}
	return input.Parameters{Mode: mode, TargetLanguage: log.TargetLanguage}, nil
}

// NewSessionLog starts an empty log for a run of total images.
func NewSessionLog(params input.Parameters, total int) *SessionLog {
	return &SessionLog{
		LogVersion:     CurrentLogVersion,
		Mode:           params.Mode.Short(),
		TargetLanguage: params.TargetLanguage,
		Total:          total,
	}
}

// AddFailure records imagePath relative to logPath. A hash is stored when
// the file is still readable.
func (log *SessionLog) AddFailure(logPath, imagePath, kind, message string) error {
	rel, err := ToRelativePath(logPath, imagePath)
	if err != nil {
		return fmt.Errorf("failed to relativize %s: %w", imagePath, err)
	}
	entry := Entry{Path: rel, Kind: kind, Message: message}
	if hash, err := HashFileHex(imagePath); err == nil {
		entry.Hash = hash
	}
	log.Failed = append(log.Failed, entry)
	log.Status = CalculateStatus(len(log.Failed), log.Total)
	return nil
}

// SaveSessionLog writes the log atomically with owner-only permissions.
func SaveSessionLog(path string, log *SessionLog) error {
	if log.LogVersion == 0 {
		log.LogVersion = CurrentLogVersion
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(path, data, 0600)
}

func LoadSessionLog(path string) (*SessionLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var log SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse recovery log %s: %w", path, err)
	}
	if log.LogVersion == 0 {
		log.LogVersion = CurrentLogVersion
	}
	return &log, nil
}

// GenerateRecoveryPath returns an unused bstudio_recovery*.json path in dir.
func GenerateRecoveryPath(dir string) (string, error) {
	path, _, err := files.SafePath(filepath.Join(dir, "bstudio_recovery.json"))
	return path, err
}

// HashFileHex returns a sha256-prefixed hex digest of the file contents.
func HashFileHex(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateStatus summarises a run from its failure count.
func CalculateStatus(failedCount, totalCount int) string {
	if failedCount == 0 {
		return StatusSuccess
	}
	if failedCount < totalCount {
		return StatusPartialSuccess
	}
	return StatusFailure
}

// ResolvePath resolves an entry path against the log file location.
func ResolvePath(logPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(logPath), p)
}

// ToRelativePath expresses target relative to the log file's directory.
func ToRelativePath(logPath, target string) (string, error) {
	absLogDir, err := filepath.Abs(filepath.Dir(logPath))
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	return filepath.Rel(absLogDir, absTarget)
}
