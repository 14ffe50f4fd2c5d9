package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/oukeidos/bstudio/internal/apperrors"
)

// DecodeDataURL splits "data:<mime>;base64,<payload>" into its MIME type and
// decoded bytes. A bare base64 payload is accepted and reported as JPEG,
// which is what the service renders.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, apperrors.InvalidResponse(errors.New("empty image field"))
	}

	mime := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return "", nil, apperrors.InvalidResponse(errors.New("data url without payload"))
		}
		meta := s[len("data:"):idx]
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, apperrors.InvalidResponse(fmt.Errorf("data url is not base64 encoded: %q", meta))
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mime = m
		}
		payload = s[idx+1:]
	}

	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return mime, b, nil
	}
	b, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, apperrors.InvalidResponse(fmt.Errorf("decode image payload: %w", err))
	}
	return mime, b, nil
}
