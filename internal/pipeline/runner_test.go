package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"catalogprj/internal/catalog"
	"catalogprj/internal/crawler"
	"catalogprj/internal/extraction"
	"catalogprj/internal/model"
	"catalogprj/internal/repository"
)

const okPage = `<html><head><title>Acme Book</title></head><body><h1>Acme Book</h1>
<table><tr><td>Brand</td><td>Acme</td></tr></table></body></html>`

type fakeFetcher struct {
	pages map[string]string
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, sku, _ string) (crawler.Page, error) {
	f.calls = append(f.calls, sku)
	if f.err != nil {
		return crawler.Page{State: crawler.StateExhausted}, f.err
	}
	html, ok := f.pages[sku]
	if !ok {
		html = okPage
	}
	return crawler.Page{HTML: html, State: crawler.StateSaved, Attempts: 1}, nil
}

type fakeExtractor struct {
	result   model.Extraction
	errs     []error // consumed one per call before result is returned
	calls    int
	payloads []crawler.Payload
}

func (x *fakeExtractor) Extract(_ context.Context, _ model.InputRecord, p crawler.Payload) (model.Extraction, error) {
	x.payloads = append(x.payloads, p)
	i := x.calls
	x.calls++
	if i < len(x.errs) && x.errs[i] != nil {
		return nil, x.errs[i]
	}
	return x.result, nil
}

type harness struct {
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	cache     *repository.ExtractionRepository
	writer    *catalog.Writer
	runner    *Runner
	slept     int
}

func newHarness(t *testing.T, resume catalog.ResumeIndex) *harness {
	t.Helper()
	dir := t.TempDir()
	w, err := catalog.Create(dir, "laptop_cms_template_", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	h := &harness{
		fetcher:   &fakeFetcher{},
		extractor: &fakeExtractor{result: model.Extraction{"attributes__brand": "Acme"}},
		cache:     &repository.ExtractionRepository{Dir: filepath.Join(dir, "groq_cache")},
		writer:    w,
	}
	if resume == nil {
		resume = catalog.ResumeIndex{}
	}
	h.runner = NewRunner(h.fetcher, h.extractor, h.cache, h.writer, resume,
		Options{RowDelayMin: 4 * time.Second, RowDelayMax: 7 * time.Second},
		zerolog.New(io.Discard))
	h.runner.sleep = func(context.Context, time.Duration) error {
		h.slept++
		return nil
	}
	return h
}

func (h *harness) rows(t *testing.T) map[string][]string {
	t.Helper()
	f, err := os.Open(h.writer.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string][]string)
	for _, r := range recs[1:] {
		out[r[model.FieldSKU]] = r
	}
	return out
}

func TestRunScenario(t *testing.T) {
	h := newHarness(t, nil)
	rec := model.InputRecord{SKU: "L100", URL: "https://example.com/p1", EAN: "123"}

	sum, err := h.runner.Run(context.Background(), []model.InputRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 1 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}

	row := h.rows(t)["L100"]
	for i, v := range row {
		f := model.Field(i)
		want := model.NA
		switch f {
		case model.FieldSKU, model.FieldBaseCode:
			want = "L100"
		case model.FieldLuluEAN:
			want = "123"
		case model.FieldBrand:
			want = "Acme"
		}
		if v != want {
			t.Errorf("%s = %q, want %q", f, v, want)
		}
	}

	if _, ok, _ := h.cache.Get("L100"); !ok {
		t.Error("raw extraction not cached")
	}
	if h.slept != 1 {
		t.Errorf("slept %d times after a networked row", h.slept)
	}
}

func TestRunMissingURL(t *testing.T) {
	h := newHarness(t, nil)

	sum, err := h.runner.Run(context.Background(), []model.InputRecord{{SKU: "L300"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.fetcher.calls) != 0 || h.extractor.calls != 0 {
		t.Error("record without url reached fetch or extraction")
	}
	if sum.Written != 1 || sum.Failed != 1 || h.slept != 0 {
		t.Errorf("summary = %+v, slept = %d", sum, h.slept)
	}
	row := h.rows(t)["L300"]
	if row[model.FieldBaseCode] != "L300" || row[model.FieldBrand] != model.NA {
		t.Errorf("row = %v", row)
	}
}

func TestRunResumeSkips(t *testing.T) {
	h := newHarness(t, catalog.ResumeIndex{"L1": {}, "L2": {}})
	recs := []model.InputRecord{
		{SKU: "L1", URL: "https://example.com/1"},
		{SKU: "L2"}, // resume wins over the missing url
		{SKU: "L3", URL: "https://example.com/3"},
	}

	sum, err := h.runner.Run(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Skipped != 2 || sum.Written != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if strings.Join(h.fetcher.calls, ",") != "L3" || h.extractor.calls != 1 {
		t.Errorf("fetched %v, extracted %d", h.fetcher.calls, h.extractor.calls)
	}
	rows := h.rows(t)
	if _, ok := rows["L1"]; ok {
		t.Error("resumed SKU written again")
	}
}

func TestRunExtractionCacheHit(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.cache.Put("L4", model.Extraction{"attributes__brand": "Cached"}); err != nil {
		t.Fatal(err)
	}

	sum, err := h.runner.Run(context.Background(), []model.InputRecord{{SKU: "L4", URL: "https://example.com/4"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.fetcher.calls) != 0 || h.extractor.calls != 0 || h.slept != 0 {
		t.Errorf("cache hit still fetched=%v extracted=%d slept=%d", h.fetcher.calls, h.extractor.calls, h.slept)
	}
	if sum.CacheHits != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if got := h.rows(t)["L4"][model.FieldBrand]; got != "Cached" {
		t.Errorf("brand = %q", got)
	}
}

func TestRunPayloadTooLargeShrinks(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.errs = []error{extraction.ErrPayloadTooLarge}
	h.fetcher.pages = map[string]string{"L5": "<body>" + strings.Repeat("spec ", 10000) + "</body>"}

	sum, err := h.runner.Run(context.Background(), []model.InputRecord{{SKU: "L5", URL: "https://example.com/5"}})
	if err != nil {
		t.Fatal(err)
	}
	if h.extractor.calls != 2 || sum.Failed != 0 {
		t.Fatalf("calls = %d, summary = %+v", h.extractor.calls, sum)
	}
	first, second := h.extractor.payloads[0].VisibleText, h.extractor.payloads[1].VisibleText
	if len(second) >= len(first) {
		t.Errorf("retry payload not smaller: %d >= %d", len(second), len(first))
	}
}

func TestRunSecondOversizeIsNA(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.errs = []error{extraction.ErrPayloadTooLarge, extraction.ErrPayloadTooLarge}

	sum, err := h.runner.Run(context.Background(), []model.InputRecord{{SKU: "L6", URL: "https://example.com/6"}})
	if err != nil {
		t.Fatal(err)
	}
	if h.extractor.calls != 2 || sum.Failed != 1 {
		t.Errorf("calls = %d, summary = %+v", h.extractor.calls, sum)
	}
	if h.cache.Exists("L6") {
		t.Error("failed extraction cached")
	}
}

func TestRunFailuresBecomeNARows(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		wantErr error
		wantLog string
	}{
		{"blocked page", func(h *harness) {
			h.fetcher.pages = map[string]string{"L7": "<body>Please verify you are a human</body>"}
		}, crawler.ErrBlocked, "[ROW_SKIP] blocked_visible_text"},
		{"fetch exhausted", func(h *harness) {
			h.fetcher.err = crawler.ErrFetchExhausted
		}, crawler.ErrFetchExhausted, "[ROW_FAIL]"},
		{"empty page", func(h *harness) {
			h.fetcher.pages = map[string]string{"L7": ""}
		}, nil, "[ROW_FAIL]"},
		{"rate limited", func(h *harness) {
			h.extractor.errs = []error{extraction.ErrRateLimited}
		}, extraction.ErrRateLimited, "[ROW_FAIL]"},
		{"malformed output", func(h *harness) {
			h.extractor.errs = []error{extraction.ErrMalformedOutput}
		}, extraction.ErrMalformedOutput, "[ROW_FAIL]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.InputRecord{SKU: "L7", URL: "https://example.com/7"}

			first := newHarness(t, nil)
			tt.setup(first)
			_, err := first.runner.extract(context.Background(), rec)
			if err == nil {
				t.Fatal("extract succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("extract error = %v, want %v", err, tt.wantErr)
			}

			h := newHarness(t, nil)
			tt.setup(h)
			var logs strings.Builder
			h.runner.log = zerolog.New(&logs)
			recs := []model.InputRecord{rec, {SKU: "L8", URL: "https://example.com/8"}}

			sum, err := h.runner.Run(context.Background(), recs)
			if err != nil {
				t.Fatal(err)
			}
			rows := h.rows(t)
			if len(rows) != 2 {
				t.Fatalf("got %d rows, want one per record", len(rows))
			}
			if sum.Written != 2 || sum.Failed < 1 {
				t.Errorf("summary = %+v", sum)
			}
			if rows["L7"][model.FieldBrand] != model.NA || rows["L7"][model.FieldBaseCode] != "L7" {
				t.Errorf("L7 row = %v", rows["L7"])
			}
			if !strings.Contains(logs.String(), tt.wantLog) {
				t.Errorf("log has no %q:\n%s", tt.wantLog, logs.String())
			}
		})
	}
}

func TestRunDuplicateSKU(t *testing.T) {
	h := newHarness(t, nil)
	recs := []model.InputRecord{
		{SKU: "L9", URL: "https://example.com/9"},
		{SKU: "L9", URL: "https://example.com/9-again"},
	}

	sum, err := h.runner.Run(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 1 || sum.Skipped != 1 || len(h.fetcher.calls) != 1 {
		t.Errorf("summary = %+v, fetches = %v", sum, h.fetcher.calls)
	}
}

func TestRunCancelledStopsBeforeNextRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.runner.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	recs := []model.InputRecord{
		{SKU: "A1", URL: "https://example.com/a1"},
		{SKU: "A2", URL: "https://example.com/a2"},
	}

	sum, err := h.runner.Run(ctx, recs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if sum.Written != 1 || len(h.fetcher.calls) != 1 {
		t.Errorf("summary = %+v, fetches = %v", sum, h.fetcher.calls)
	}
}
