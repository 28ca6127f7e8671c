package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger for appEnv:
//   - "development": debug level, console output on stdout
//   - "cli": warnings only, console output on stderr so stdout stays scriptable
//   - anything else: JSON on stdout at LOG_LEVEL (default info)
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Getenv("LOG_LEVEL"), os.Stdout, os.Stderr)
}

func newLogger(appEnv, levelName string, stdout, stderr io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	var out io.Writer = stdout
	switch appEnv {
	case "development":
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
	case "cli":
		level = zerolog.WarnLevel
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}
	if name := strings.ToLower(strings.TrimSpace(levelName)); name != "" {
		if parsed, err := zerolog.ParseLevel(name); err == nil {
			level = parsed
		}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "promptfusion").
		Logger()
}
