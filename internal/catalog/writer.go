package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"catalogprj/internal/model"
)

// ErrDuplicateSKU is returned when a run tries to export a SKU twice.
var ErrDuplicateSKU = errors.New("sku already written in this run")

// TimestampLayout names export files: <prefix>20260102_150405.csv.
const TimestampLayout = "20060102_150405"

// OutputName returns the export file name for a run started at now.
func OutputName(prefix string, now time.Time) string {
	return prefix + now.Format(TimestampLayout) + ".csv"
}

// Writer streams rows to one export file. Each row is flushed immediately
// so an interrupted run leaves a readable prefix for the next resume.
type Writer struct {
	path    string
	f       *os.File
	w       *csv.Writer
	written map[string]bool
	rows    int
}

// Create opens a new export in dir and writes the header row.
func Create(dir, prefix string, now time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, OutputName(prefix, now))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	w := &Writer{
		path:    path,
		f:       f,
		w:       csv.NewWriter(f),
		written: make(map[string]bool),
	}
	if err := w.w.Write(model.Headers); err != nil {
		f.Close()
		return nil, err
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Path() string { return w.path }

// Rows is the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

// Written reports whether sku already has a row in this export.
func (w *Writer) Written(sku string) bool {
	return w.written[sku]
}

func (w *Writer) Write(row model.SchemaRow) error {
	sku := row.Get(model.FieldSKU)
	if sku != model.NA && w.written[sku] {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
	}
	if err := w.w.Write(row.Record()); err != nil {
		return err
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if sku != model.NA {
		w.written[sku] = true
	}
	w.rows++
	return nil
}

func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
