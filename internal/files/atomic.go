package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oukeidos/bstudio/internal/logger"
)

// AtomicWrite stages data in a sibling temp file and renames it over path,
// so a reader sees either the old image or the whole new one. Symlinked
// destinations are refused.
func AtomicWrite(path string, data []byte, perm os.FileMode) (err error) {
	if err := RejectSymlinkPath(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bstudio-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", filepath.Base(path), err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err = renameAtomic(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}

	if serr := syncDir(dir); serr != nil {
		logger.Debug("Directory fsync failed", "path", dir, "error", serr)
	}
	return nil
}
