package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"catalogprj/internal/model"
)

// ErrCorruptEntry marks a cache file that exists but does not hold a JSON
// object. Callers treat it as a miss.
var ErrCorruptEntry = errors.New("corrupt extraction cache entry")

// ExtractionRepository persists raw model output per SKU as {sku}.json.
// There is no invalidation: once written, an entry is reused forever.
type ExtractionRepository struct {
	Dir string
}

func (r *ExtractionRepository) path(sku string) string {
	return filepath.Join(r.Dir, fileName(sku)+".json")
}

// Get returns the cached extraction. A missing file is (nil, false, nil);
// an unreadable or empty object is (nil, false, ErrCorruptEntry).
func (r *ExtractionRepository) Get(sku string) (model.Extraction, bool, error) {
	b, err := os.ReadFile(r.path(sku))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ext model.Extraction
	if err := json.Unmarshal(b, &ext); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, sku, err)
	}
	if len(ext) == 0 {
		return nil, false, fmt.Errorf("%w: %s: empty object", ErrCorruptEntry, sku)
	}
	return ext, true, nil
}

// Put writes ext pretty-printed. The write goes through a temp file so an
// interrupted run never leaves a half-written entry behind.
func (r *ExtractionRepository) Put(sku string, ext model.Extraction) error {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ext); err != nil {
		return fmt.Errorf("encode extraction %s: %w", sku, err)
	}

	tmp, err := os.CreateTemp(r.Dir, fileName(sku)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path(sku))
}

func (r *ExtractionRepository) Exists(sku string) bool {
	return fileExists(r.path(sku))
}
