package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup routes the global logger to path. The terminal belongs to the UI, so
// nothing is written to stdout or stderr once Setup succeeds.
func Setup(level, path string) (io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)

	path = strings.TrimSpace(path)
	if path == "" {
		log.Logger = zerolog.New(io.Discard)
		return io.NopCloser(nil), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	return f, nil
}

// ParseLevel accepts zerolog level names; an empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Component returns a child of the global logger tagged with name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
