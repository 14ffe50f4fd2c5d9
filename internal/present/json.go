package present

import (
	"encoding/json"
	"io"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/controller"
)

// Document is the machine-readable view of a state. Absent result fields
// encode as null; empty strings stay empty strings.
type Document struct {
	Source       string        `json:"source,omitempty"`
	Phase        string        `json:"phase"`
	Seq          uint64        `json:"seq"`
	Raw          *string       `json:"raw"`
	Refined      *string       `json:"refined"`
	Translated   *string       `json:"translated"`
	Segmentation *Segmentation `json:"segmentation"`
	Error        *ErrorInfo    `json:"error,omitempty"`
}

type Segmentation struct {
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	SavedTo     string `json:"saved_to,omitempty"`
}

type ErrorInfo struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// NewDocument converts st. Result fields are only populated for a
// succeeded state.
func NewDocument(st controller.State) Document {
	doc := Document{Phase: st.Phase.String(), Seq: st.Seq}
	switch st.Phase {
	case controller.PhaseSucceeded:
		doc.Raw = optional(st.Result.Raw())
		doc.Refined = optional(st.Result.Refined())
		doc.Translated = optional(st.Result.Translated())
		if img, ok := st.Result.Segmentation(); ok {
			doc.Segmentation = &Segmentation{ContentType: img.ContentType, Bytes: len(img.Data)}
		}
	case controller.PhaseFailed:
		doc.Error = &ErrorInfo{Kind: st.FailureKind(), Message: st.Failure()}
	}
	return doc
}

type JSONRenderer struct {
	Out    io.Writer
	Indent bool
}

func (r JSONRenderer) Render(st controller.State) error {
	return r.Encode(NewDocument(st))
}

// Encode writes any value with the renderer's formatting, one value per line.
func (r JSONRenderer) Encode(v any) error {
	enc := json.NewEncoder(r.Out)
	enc.SetEscapeHTML(false)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
