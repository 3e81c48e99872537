// Package logging sets up the append-only run log shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New opens path in append mode and returns a logger writing one line per
// event to both console and file. Each line carries the run id.
func New(path string, console io.Writer) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open run log: %w", err)
	}
	return NewWithWriters(console, f), f, nil
}

// NewWithWriters builds the run logger on top of arbitrary writers.
func NewWithWriters(console, file io.Writer) zerolog.Logger {
	var writers []io.Writer
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly})
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: time.RFC3339})
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}
