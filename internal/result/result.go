// Package result holds the immutable outcome of a successful submission.
//
// Every field is optional. An absent field (nil) means the service sent no
// data for it; a present empty string means the service sent empty data.
// Skins must render the two differently.
package result

// Placeholder is shown for fields the service did not provide.
const Placeholder = "not yet available"

// Image is the segmentation map: the input with detected cells boxed.
type Image struct {
	ContentType string
	Data        []byte
}

// Translation is built once from a service response and never mutated.
type Translation struct {
	segmentation *Image
	raw          *string
	refined      *string
	translated   *string
}

// New builds a Translation, copying every input so later changes by the
// caller cannot leak in.
func New(segmentation *Image, raw, refined, translated *string) *Translation {
	t := &Translation{
		raw:        cloneString(raw),
		refined:    cloneString(refined),
		translated: cloneString(translated),
	}
	if segmentation != nil {
		t.segmentation = &Image{
			ContentType: segmentation.ContentType,
			Data:        append([]byte(nil), segmentation.Data...),
		}
	}
	return t
}

func (t *Translation) Raw() (string, bool)        { return deref(t.rawPtr()) }
func (t *Translation) Refined() (string, bool)    { return deref(t.refinedPtr()) }
func (t *Translation) Translated() (string, bool) { return deref(t.translatedPtr()) }

// Segmentation returns a copy of the visualization, if any.
func (t *Translation) Segmentation() (Image, bool) {
	if t == nil || t.segmentation == nil {
		return Image{}, false
	}
	return Image{
		ContentType: t.segmentation.ContentType,
		Data:        append([]byte(nil), t.segmentation.Data...),
	}, true
}

// Display returns the field text, or Placeholder when it is absent.
func Display(s string, ok bool) string {
	if !ok {
		return Placeholder
	}
	return s
}

func (t *Translation) rawPtr() *string {
	if t == nil {
		return nil
	}
	return t.raw
}

func (t *Translation) refinedPtr() *string {
	if t == nil {
		return nil
	}
	return t.refined
}

func (t *Translation) translatedPtr() *string {
	if t == nil {
		return nil
	}
	return t.translated
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
