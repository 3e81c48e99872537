package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"catalogprj/internal/model"
)

// ResumeIndex is the set of SKUs already exported by the previous run.
type ResumeIndex map[string]struct{}

func (idx ResumeIndex) Contains(sku string) bool {
	_, ok := idx[sku]
	return ok
}

func (idx ResumeIndex) Len() int { return len(idx) }

// LatestOutput finds the most recently modified <prefix>*.csv in dir,
// ignoring the file named exclude (the export this run is about to write).
func LatestOutput(dir, prefix, exclude string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.csv"))
	if err != nil {
		return "", false, err
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, m := range matches {
		if filepath.Base(m) == filepath.Base(exclude) {
			continue
		}
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		if latest == "" || st.ModTime().After(latestTime) {
			latest, latestTime = m, st.ModTime()
		}
	}
	return latest, latest != "", nil
}

// LoadResumeIndex collects the sku column of a prior export. On a read
// error the SKUs gathered so far are returned alongside the error.
func LoadResumeIndex(path string) (ResumeIndex, error) {
	idx := make(ResumeIndex)

	f, err := os.Open(path)
	if err != nil {
		return idx, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return idx, nil
	}
	if err != nil {
		return idx, fmt.Errorf("read header of %s: %w", path, err)
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == "sku" {
			col = i
			break
		}
	}
	if col < 0 {
		return idx, nil
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return idx, fmt.Errorf("read %s: %w", path, err)
		}
		if col >= len(rec) {
			continue
		}
		sku := strings.TrimSpace(rec[col])
		if sku != "" && sku != model.NA {
			idx[sku] = struct{}{}
		}
	}
}
