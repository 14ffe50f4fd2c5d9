package present

import (
	"errors"
	"fmt"
	"os"

	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/prompt"
	"github.com/oukeidos/bstudio/internal/result"
)

// ErrDeclined is returned when the user refuses to overwrite a file.
var ErrDeclined = errors.New("overwrite declined")

type SaveOptions struct {
	// Force overwrites without asking.
	Force bool
	// Unique picks a free sibling name instead of overwriting.
	Unique  bool
	Confirm prompt.Confirmer
}

// SaveSegmentation writes img to path and returns the path actually used.
func SaveSegmentation(path string, img result.Image, opts SaveOptions) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("segmentation image is empty")
	}
	if err := files.RejectSymlinkPath(path); err != nil {
		return "", err
	}

	target := path
	if opts.Unique {
		p, renamed, err := files.SafePath(path)
		if err != nil {
			return "", err
		}
		if renamed {
			logger.Info("Segmentation path taken; using alternative", "requested", path, "path", p)
		}
		target = p
	} else if _, err := os.Stat(path); err == nil {
		ok, err := opts.Confirm.ConfirmOverwrite(path, opts.Force)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrDeclined
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to check output path: %w", err)
	}

	if err := files.AtomicWrite(target, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save segmentation image: %w", err)
	}
	logger.Debug("Segmentation image saved", "path", target, "bytes", len(img.Data))
	return target, nil
}
