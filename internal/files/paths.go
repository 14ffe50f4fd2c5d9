package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RejectSymlinkPath returns an error if the path or any existing ancestor
// directory is a symlink (or, on Windows, a reparse point).
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for current := abs; ; {
		info, err := os.Lstat(current)
		switch {
		case err == nil:
			if info.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("refusing to write to symlink path: %s (symlink detected at %s)", path, current)
			}
			reparse, rerr := isReparsePoint(current)
			if rerr != nil {
				return fmt.Errorf("failed to check reparse point: %w", rerr)
			}
			if reparse {
				return fmt.Errorf("refusing to write to symlink path: %s (reparse point detected at %s)", path, current)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("failed to access path: %w", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}
		current = parent
	}
}

// SafePath returns a non-existing path by appending _1.._9, then a UUID suffix.
// If the original path does not exist, it is returned unchanged.
func SafePath(path string) (string, bool, error) {
	if path == "" {
		return "", false, fmt.Errorf("path is empty")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, false, nil
	} else if err != nil {
		return "", false, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, true, nil
		} else if err != nil {
			return "", false, err
		}
	}
	return fmt.Sprintf("%s_%s%s", base, newSuffix(), ext), true, nil
}

// SegmentationPath derives the output path of a segmentation map for an
// input image: photo.png -> <dir>/photo_segmentation.jpg.
func SegmentationPath(dir, inputPath, ext string) string {
	name := filepath.Base(inputPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	if ext == "" {
		ext = ".jpg"
	}
	return filepath.Join(dir, name+"_segmentation"+ext)
}

func newSuffix() string {
	if u, err := uuid.NewV7(); err == nil {
		return u.String()
	}
	return uuid.NewString()[:8]
}
