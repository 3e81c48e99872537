// Package report summarises, per SKU, what earlier runs left on disk.
package report

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"catalogprj/internal/catalog"
	"catalogprj/internal/model"
	"catalogprj/internal/repository"
)

type SKUStatus struct {
	SKU        string
	HTML       bool
	Screenshot bool
	Extraction bool
	Exported   bool
}

// Build reports the cache state of every input record, in input order.
func Build(records []model.InputRecord, html *repository.HTMLRepository, cache *repository.ExtractionRepository, exported catalog.ResumeIndex) []SKUStatus {
	out := make([]SKUStatus, 0, len(records))
	for _, rec := range records {
		if rec.SKU == "" {
			continue
		}
		out = append(out, SKUStatus{
			SKU:        rec.SKU,
			HTML:       html.Exists(rec.SKU),
			Screenshot: html.ScreenshotExists(rec.SKU),
			Extraction: cache.Exists(rec.SKU),
			Exported:   exported.Contains(rec.SKU),
		})
	}
	return out
}

func Write(w io.Writer, rows []SKUStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tHTML\tSCREENSHOT\tEXTRACTION\tEXPORTED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.SKU, mark(r.HTML), mark(r.Screenshot), mark(r.Extraction), mark(r.Exported))
	}
	return tw.Flush()
}

// Tail returns at most max bytes from the end of the file at path. A missing
// file yields an empty string.
func Tail(path string, max int64) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	off := st.Size() - max
	if off < 0 {
		off = 0
	}
	b := make([]byte, st.Size()-off)
	if _, err := f.ReadAt(b, off); err != nil && err != io.EOF {
		return "", err
	}
	return string(b), nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}
