// Package input owns the image and parameters of the next submission.
// It never talks to the network.
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/language"
	"github.com/oukeidos/bstudio/internal/logger"
)

// DefaultMaxImageBytes caps images read from disk.
const DefaultMaxImageBytes = 20 << 20

// SelectedImage is the image currently held by a Stage.
type SelectedImage struct {
	Name        string
	ContentType string
	Data        []byte
	Preview     Preview
}

// Snapshot is an independent copy of everything a submission needs.
type Snapshot struct {
	Name        string
	ContentType string
	Image       []byte
	Params      Parameters
	// Generation is the ImageGeneration the image belongs to.
	Generation uint64
}

// Stage holds the user's current image and submission parameters.
type Stage struct {
	mu       sync.Mutex
	previews PreviewStore
	image    *SelectedImage
	params   Parameters
	onChange []func()
	maxBytes int64
	gen      uint64
}

type Option func(*Stage)

// WithMaxImageBytes overrides the size cap used by SelectImageFile.
func WithMaxImageBytes(n int64) Option {
	return func(s *Stage) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithParameters sets the initial parameters. An unsupported target
// language is dropped.
func WithParameters(p Parameters) Option {
	return func(s *Stage) {
		if p.TargetLanguage != "" && !language.IsSupported(p.TargetLanguage) {
			p.TargetLanguage = ""
		}
		s.params = p
	}
}

// NewStage returns an empty Stage. previews must not be nil.
func NewStage(previews PreviewStore, opts ...Option) *Stage {
	s := &Stage{
		previews: previews,
		params:   Parameters{Mode: ModeDigitalDots},
		maxBytes: DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnImageChanged registers fn to run after the image is replaced or cleared.
// fn runs without the Stage lock held.
func (s *Stage) OnImageChanged(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// SelectImage replaces the current image. Only an empty payload is
// rejected; whether the bytes decode is up to the service.
func (s *Stage) SelectImage(name string, data []byte) error {
	if len(data) == 0 {
		return apperrors.New(apperrors.KindNoImage, "Selected image is empty.", errors.New("empty image payload"))
	}
	owned := append([]byte(nil), data...)
	contentType := SniffContentType(owned)
	if !strings.HasPrefix(contentType, "image/") {
		logger.Warn("Selected file does not look like an image; sending anyway", "name", name, "content_type", contentType)
	}

	s.mu.Lock()
	s.releaseLocked()
	s.gen++
	preview, err := s.previews.Create(owned, contentType)
	if err == nil {
		s.image = &SelectedImage{
			Name:        name,
			ContentType: contentType,
			Data:        owned,
			Preview:     preview,
		}
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners)
	if err != nil {
		return err
	}
	logger.Debug("Image selected", "name", name, "bytes", len(owned), "content_type", contentType)
	return nil
}

// SelectImageFile reads path and selects its contents.
func (s *Stage) SelectImageFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.New(apperrors.KindNoImage, fmt.Sprintf("Cannot open image %s.", path), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read image %s: %w", path, err)
	}
	if int64(len(data)) > s.maxBytes {
		return apperrors.New(apperrors.KindValidation,
			fmt.Sprintf("Image %s is larger than %d bytes.", path, s.maxBytes), nil)
	}
	return s.SelectImage(filepath.Base(path), data)
}

// ClearImage releases the image and its preview. Clearing an empty Stage
// does nothing.
func (s *Stage) ClearImage() {
	s.mu.Lock()
	had := s.image != nil
	s.releaseLocked()
	var listeners []func()
	if had {
		s.gen++
		listeners = s.listenersLocked()
	}
	s.mu.Unlock()
	notify(listeners)
}

// SetMode changes the capture mode.
func (s *Stage) SetMode(m Mode) {
	s.mu.Lock()
	s.params.Mode = m
	s.mu.Unlock()
}

// SetTargetLanguage sets the target language. Unsupported codes are ignored
// and reported with false; an empty code clears the target.
func (s *Stage) SetTargetLanguage(code string) bool {
	if code != "" && !language.IsSupported(code) {
		logger.Debug("Ignoring unsupported target language", "code", code)
		return false
	}
	s.mu.Lock()
	s.params.TargetLanguage = code
	s.mu.Unlock()
	return true
}

// Params returns the current parameters.
func (s *Stage) Params() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Current returns a copy of the selected image.
func (s *Stage) Current() (SelectedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return SelectedImage{}, false
	}
	img := *s.image
	img.Data = append([]byte(nil), s.image.Data...)
	return img, true
}

// Snapshot copies what a submission needs; false when no image is selected.
func (s *Stage) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		Name:        s.image.Name,
		ContentType: s.image.ContentType,
		Image:       append([]byte(nil), s.image.Data...),
		Params:      s.params,
		Generation:  s.gen,
	}, true
}

// ImageGeneration counts image replacements and clears. Listeners may run
// after a later Snapshot already reflects the change; comparing generations
// tells the two apart.
func (s *Stage) ImageGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Close releases the current preview without signalling listeners.
func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Stage) releaseLocked() error {
	if s.image == nil {
		return nil
	}
	old := s.image.Preview
	s.image = nil
	if err := s.previews.Release(old); err != nil {
		logger.Warn("Preview release failed", "path", old.Path, "error", err)
		return err
	}
	return nil
}

func (s *Stage) listenersLocked() []func() {
	return append([]func(){}, s.onChange...)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
