package jsoncfg

import "testing"

func TestStyleMetadataMapDefaults(t *testing.T) {
	m := StyleMetadata{StyleNotes: "  ", Size: "1024x1024"}.Map()

	if m["preset"] != "none" {
		t.Fatalf("preset = %v, want none", m["preset"])
	}
	if _, ok := m["styleNotes"]; ok {
		t.Fatalf("blank styleNotes should be omitted, got %#v", m)
	}
	if m["size"] != "1024x1024" {
		t.Fatalf("size = %v, want 1024x1024", m["size"])
	}
}

func TestComposeIdeaOrdersByQuestion(t *testing.T) {
	got := ComposeIdea(map[string]string{
		"subject":  "a lighthouse",
		"lighting": "stormy dusk",
		"empty":    " ",
	})
	want := "lighting: stormy dusk; subject: a lighthouse"
	if got != want {
		t.Fatalf("ComposeIdea = %q, want %q", got, want)
	}
}

func TestDecodeObject(t *testing.T) {
	m, err := DecodeObject(nil)
	if err != nil || m != nil {
		t.Fatalf("DecodeObject(nil) = %v, %v", m, err)
	}
	m, err = DecodeObject(MustMarshal(map[string]any{"seed": 7}))
	if err != nil {
		t.Fatalf("DecodeObject returned error: %v", err)
	}
	if m["seed"] != float64(7) {
		t.Fatalf("seed = %v, want 7", m["seed"])
	}
	if _, err := DecodeObject([]byte("{")); err == nil {
		t.Fatalf("DecodeObject should reject malformed json")
	}
}
