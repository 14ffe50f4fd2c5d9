package input

import (
	"fmt"
	"strings"
)

// Mode tells the service how the source image was captured, which decides
// its thresholding strategy.
type Mode int

const (
	ModeDigitalDots Mode = iota
	ModeEmbossedPhoto
)

const (
	wireDigitalDots   = "Digital/Black Dots"
	wireEmbossedPhoto = "Real Photo (Embossed)"
)

// Modes lists every capture mode in display order.
var Modes = []Mode{ModeDigitalDots, ModeEmbossedPhoto}

// Wire returns the exact string the service expects in the mode field.
func (m Mode) Wire() string {
	switch m {
	case ModeEmbossedPhoto:
		return wireEmbossedPhoto
	default:
		return wireDigitalDots
	}
}

// Short returns the CLI name of the mode.
func (m Mode) Short() string {
	switch m {
	case ModeEmbossedPhoto:
		return "embossed"
	default:
		return "digital"
	}
}

func (m Mode) String() string { return m.Wire() }

// ParseMode accepts a wire string or a short name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	needle := strings.TrimSpace(s)
	for _, m := range Modes {
		if strings.EqualFold(needle, m.Wire()) || strings.EqualFold(needle, m.Short()) {
			return m, nil
		}
	}
	switch strings.ToLower(needle) {
	case "dots", "black":
		return ModeDigitalDots, nil
	case "photo":
		return ModeEmbossedPhoto, nil
	}
	return ModeDigitalDots, fmt.Errorf("unknown capture mode %q (use digital or embossed)", s)
}

// Parameters are the submission settings besides the image itself.
// An empty TargetLanguage means none was requested.
type Parameters struct {
	Mode           Mode
	TargetLanguage string
}

// HasTarget reports whether a target language was requested.
func (p Parameters) HasTarget() bool { return p.TargetLanguage != "" }
