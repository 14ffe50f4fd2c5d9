package input

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/oukeidos/bstudio/internal/files"
)

// Preview is a local, viewable copy of the selected image. It is only valid
// until released.
type Preview struct {
	Path        string
	ContentType string
}

// PreviewStore creates and releases previews.
type PreviewStore interface {
	Create(data []byte, contentType string) (Preview, error)
	Release(p Preview) error
}

// TempPreviewStore keeps previews as files in a private temp directory.
type TempPreviewStore struct {
	mu  sync.Mutex
	dir string
}

func NewTempPreviewStore() *TempPreviewStore {
	return &TempPreviewStore{}
}

func (s *TempPreviewStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "bstudio-previews-*")
	if err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}

func (s *TempPreviewStore) Create(data []byte, contentType string) (Preview, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return Preview{}, err
	}
	path := filepath.Join(dir, uuid.NewString()+extensionFor(contentType))
	if err := files.AtomicWrite(path, data, 0600); err != nil {
		return Preview{}, fmt.Errorf("failed to write preview: %w", err)
	}
	return Preview{Path: path, ContentType: contentType}, nil
}

func (s *TempPreviewStore) Release(p Preview) error {
	if p.Path == "" {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release preview: %w", err)
	}
	return nil
}

// Close removes the preview directory and anything left in it.
func (s *TempPreviewStore) Close() error {
	s.mu.Lock()
	dir := s.dir
	s.dir = ""
	s.mu.Unlock()
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".bin"
	}
}
