package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// HTMLRepository keeps the last fetched HTML snapshot ({sku}.html) and a
// best-effort screenshot ({sku}.png) for every SKU. Entries are never
// deleted by the pipeline.
type HTMLRepository struct {
	Dir           string
	ScreenshotDir string
	// MinBytes is the size an HTML snapshot must reach to count as fresh.
	MinBytes int64
}

func (r *HTMLRepository) htmlPath(sku string) string {
	return filepath.Join(r.Dir, fileName(sku)+".html")
}

func (r *HTMLRepository) screenshotPath(sku string) string {
	return filepath.Join(r.ScreenshotDir, fileName(sku)+".png")
}

// Fresh returns the cached snapshot when it exists and is at least MinBytes
// long. Small or missing snapshots are reported as absent.
func (r *HTMLRepository) Fresh(sku string) (string, bool, error) {
	p := r.htmlPath(sku)
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if st.Size() < r.MinBytes {
		return "", false, nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Save overwrites the snapshot for sku and returns the stored size.
func (r *HTMLRepository) Save(sku, html string) (int64, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(r.htmlPath(sku), []byte(html), 0o644); err != nil {
		return 0, fmt.Errorf("save html %s: %w", sku, err)
	}
	return int64(len(html)), nil
}

// SaveScreenshot stores a PNG capture and returns its file name.
func (r *HTMLRepository) SaveScreenshot(sku string, png []byte) (string, error) {
	if err := os.MkdirAll(r.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	p := r.screenshotPath(sku)
	if err := os.WriteFile(p, png, 0o644); err != nil {
		return "", fmt.Errorf("save screenshot %s: %w", sku, err)
	}
	return filepath.Base(p), nil
}

func (r *HTMLRepository) Exists(sku string) bool {
	return fileExists(r.htmlPath(sku))
}

func (r *HTMLRepository) ScreenshotExists(sku string) bool {
	return fileExists(r.screenshotPath(sku))
}

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// fileName maps a SKU to a base name that stays inside the cache directory.
func fileName(sku string) string {
	name := nameReplacer.Replace(sku)
	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	return name
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
