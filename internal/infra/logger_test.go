package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := newLogger("production", "", &stdout, &stderr)
	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "j1").Msg("worker: job finished")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &line); err != nil {
		t.Fatalf("stdout is not one JSON line: %q", stdout.String())
	}
	if line["job_id"] != "j1" || line["service"] != "promptfusion" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if stderr.Len() != 0 {
		t.Fatalf("stderr = %q, want empty", stderr.String())
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{env: "development", want: zerolog.DebugLevel},
		{env: "cli", want: zerolog.WarnLevel},
		{env: "production", want: zerolog.InfoLevel},
		{env: "production", level: "ERROR", want: zerolog.ErrorLevel},
		{env: "production", level: "bogus", want: zerolog.InfoLevel},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		if got := newLogger(tc.env, tc.level, &buf, &buf).GetLevel(); got != tc.want {
			t.Fatalf("newLogger(%q, %q) level = %s, want %s", tc.env, tc.level, got, tc.want)
		}
	}
}
