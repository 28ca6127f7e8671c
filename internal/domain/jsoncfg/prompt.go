package jsoncfg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StyleMetadata is the structured part of a prompt snapshot's style column.
type StyleMetadata struct {
	Preset     string `json:"preset"`
	PresetName string `json:"presetName,omitempty"`
	StyleNotes string `json:"styleNotes,omitempty"`
	MoodTags   string `json:"moodTags,omitempty"`
	Size       string `json:"size,omitempty"`
	Source     string `json:"source,omitempty"`
	Fallback   string `json:"fallbackReason,omitempty"`
}

// Map flattens the metadata into the generic map stored on prompts.
func (s StyleMetadata) Map() map[string]any {
	out := map[string]any{"preset": coalesce(s.Preset, "none")}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	set("presetName", s.PresetName)
	set("styleNotes", s.StyleNotes)
	set("moodTags", s.MoodTags)
	set("size", s.Size)
	set("source", s.Source)
	set("fallbackReason", s.Fallback)
	return out
}

// ComposeIdea turns structured preset answers into idea text, ordered by question.
func ComposeIdea(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k, v := range answers {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.TrimSpace(k), strings.TrimSpace(answers[k])))
	}
	return strings.Join(parts, "; ")
}

// DecodeObject decodes a JSON object column, treating empty input as nil.
func DecodeObject(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return out, nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
