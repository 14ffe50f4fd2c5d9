package result

import "testing"

func ptr(s string) *string { return &s }

func TestAbsentIsDistinctFromEmpty(t *testing.T) {
	absent := New(nil, ptr("hello"), ptr("Hello."), nil)
	empty := New(nil, ptr("hello"), ptr("Hello."), ptr(""))

	if _, ok := absent.Translated(); ok {
		t.Fatalf("expected translated to be absent")
	}
	got, ok := empty.Translated()
	if !ok || got != "" {
		t.Fatalf("expected present empty translation, got (%q, %v)", got, ok)
	}
	if Display(absent.Translated()) != Placeholder {
		t.Fatalf("absent field must render as placeholder")
	}
	if Display(empty.Translated()) != "" {
		t.Fatalf("empty field must render as empty text")
	}
}

func TestNewCopiesInputs(t *testing.T) {
	raw := "hello"
	data := []byte{0xFF, 0xD8}
	tr := New(&Image{ContentType: "image/jpeg", Data: data}, &raw, nil, nil)

	raw = "changed"
	data[0] = 0
	if got, _ := tr.Raw(); got != "hello" {
		t.Fatalf("raw mutated through caller pointer: %q", got)
	}
	img, ok := tr.Segmentation()
	if !ok || img.Data[0] != 0xFF {
		t.Fatalf("segmentation mutated through caller slice")
	}
	img.Data[1] = 0
	again, _ := tr.Segmentation()
	if again.Data[1] != 0xD8 {
		t.Fatalf("segmentation mutated through returned copy")
	}
}

func TestNilTranslation(t *testing.T) {
	var tr *Translation
	if _, ok := tr.Raw(); ok {
		t.Fatalf("nil translation must report absent fields")
	}
	if _, ok := tr.Segmentation(); ok {
		t.Fatalf("nil translation must report absent segmentation")
	}
}
