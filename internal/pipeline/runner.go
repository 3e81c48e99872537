// Package pipeline runs input records one by one through cache lookup,
// fetch, block detection, compaction, extraction and normalization, and
// streams exactly one output row per processed record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"catalogprj/internal/catalog"
	"catalogprj/internal/crawler"
	"catalogprj/internal/extraction"
	"catalogprj/internal/model"
	"catalogprj/internal/observability"
)

// Fetcher returns the HTML of one product page.
type Fetcher interface {
	Fetch(ctx context.Context, sku, url string) (crawler.Page, error)
}

// Extractor asks the model for the raw attribute object of one record.
type Extractor interface {
	Extract(ctx context.Context, rec model.InputRecord, payload crawler.Payload) (model.Extraction, error)
}

// ExtractionCache stores raw extractions per SKU.
type ExtractionCache interface {
	Get(sku string) (model.Extraction, bool, error)
	Put(sku string, ext model.Extraction) error
}

// RowWriter is the output CSV of the current run.
type RowWriter interface {
	Write(row model.SchemaRow) error
	Written(sku string) bool
	Path() string
}

// Options tunes compaction sizes and the pause between networked records.
type Options struct {
	MaxVisibleChars    int
	ShrunkVisibleChars int
	RowDelayMin        time.Duration
	RowDelayMax        time.Duration
}

// Summary counts what a run did. Written includes the NA rows counted in
// Failed; Skipped records produced no row at all.
type Summary struct {
	Written   int
	Skipped   int
	Failed    int
	CacheHits int
	Output    string
}

type outcome int

const (
	rowOK outcome = iota
	rowNA
	rowSkipped
	rowAborted
)

type Runner struct {
	fetcher   Fetcher
	extractor Extractor
	cache     ExtractionCache
	writer    RowWriter
	resume    catalog.ResumeIndex
	opts      Options
	log       zerolog.Logger

	sleep func(context.Context, time.Duration) error
}

func NewRunner(f Fetcher, x Extractor, cache ExtractionCache, w RowWriter, resume catalog.ResumeIndex, opts Options, log zerolog.Logger) *Runner {
	if opts.MaxVisibleChars <= 0 {
		opts.MaxVisibleChars = crawler.DefaultVisibleChars
	}
	if opts.ShrunkVisibleChars <= 0 {
		opts.ShrunkVisibleChars = crawler.ShrunkVisibleChars
	}
	return &Runner{
		fetcher:   f,
		extractor: x,
		cache:     cache,
		writer:    w,
		resume:    resume,
		opts:      opts,
		log:       log,
		sleep:     sleepContext,
	}
}

// Run processes records in order. A per-record failure becomes an NA row;
// only a cancelled context or a failed output write stops the run.
func (r *Runner) Run(ctx context.Context, records []model.InputRecord) (Summary, error) {
	sum := Summary{Output: r.writer.Path()}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r.log.Info().Str("sku", rec.SKU).Msgf("[ROW] %d/%d", i+1, len(records))

		out, network, cacheHit, err := r.process(ctx, rec)
		if err != nil {
			return sum, err
		}
		if out == rowAborted {
			return sum, ctx.Err()
		}
		if cacheHit {
			sum.CacheHits++
		}
		switch out {
		case rowOK:
			sum.Written++
			observability.RowsTotal.WithLabelValues("ok").Inc()
		case rowNA:
			sum.Written++
			sum.Failed++
			observability.RowsTotal.WithLabelValues("na").Inc()
		case rowSkipped:
			sum.Skipped++
			observability.RowsTotal.WithLabelValues("skipped").Inc()
		}

		if network {
			if err := r.sleep(ctx, r.rowDelay()); err != nil {
				return sum, err
			}
		}
	}

	r.log.Info().
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("cache_hits", sum.CacheHits).
		Msgf("[DONE] %s", sum.Output)
	return sum, nil
}

// process handles one record. network reports whether a fetch or model call
// was attempted, which is what earns the pause before the next record.
func (r *Runner) process(ctx context.Context, rec model.InputRecord) (out outcome, network, cacheHit bool, err error) {
	sku := rec.SKU

	if sku != "" && r.resume.Contains(sku) {
		r.log.Info().Str("sku", sku).Msg("[RESUME] already exported, skipping")
		return rowSkipped, false, false, nil
	}
	if rec.Missing() {
		r.log.Warn().Str("sku", sku).Msg("[ROW_SKIP] missing sku/url -> NA row")
		out, err := r.writeRow(catalog.NARow(rec), rowNA)
		return out, false, false, err
	}
	if r.writer.Written(sku) {
		r.log.Warn().Str("sku", sku).Msg("[ROW_SKIP] duplicate sku in input")
		return rowSkipped, false, false, nil
	}

	ext, ok, err := r.cache.Get(sku)
	if err != nil {
		r.log.Warn().Err(err).Str("sku", sku).Msg("[GROQ_CACHE] unreadable entry, extracting again")
	}
	if ok {
		r.log.Info().Str("sku", sku).Msg("[GROQ_CACHE_HIT]")
		observability.CacheHitsTotal.WithLabelValues("extraction").Inc()
		out, err := r.writeRow(catalog.Normalize(ext, rec), rowOK)
		return out, false, true, err
	}

	ext, err = r.extract(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			return rowAborted, true, false, nil
		}
		if errors.Is(err, crawler.ErrBlocked) {
			r.log.Warn().Str("sku", sku).Msg("[ROW_SKIP] blocked_visible_text -> NA row")
		} else {
			r.log.Error().Err(err).Str("sku", sku).Msg("[ROW_FAIL] -> NA row")
		}
		out, err := r.writeRow(catalog.NARow(rec), rowNA)
		return out, true, false, err
	}

	if err := r.cache.Put(sku, ext); err != nil {
		r.log.Warn().Err(err).Str("sku", sku).Msg("[GROQ_CACHE] write failed")
	}
	out, err = r.writeRow(catalog.Normalize(ext, rec), rowOK)
	if err == nil && out == rowOK {
		r.log.Info().Str("sku", sku).Msgf("[ROW_OK] wrote row, cached %s.json", sku)
	}
	return out, true, false, err
}

// extract covers everything that touches the network for one record.
func (r *Runner) extract(ctx context.Context, rec model.InputRecord) (model.Extraction, error) {
	page, err := r.fetcher.Fetch(ctx, rec.SKU, rec.URL)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	if page.HTML == "" {
		return nil, errors.New("scrape: empty page")
	}
	if crawler.LooksBlocked(page.HTML) {
		return nil, fmt.Errorf("scrape %s: %w", rec.URL, crawler.ErrBlocked)
	}

	payload, err := crawler.Compact(page.HTML, r.opts.MaxVisibleChars)
	if err != nil {
		return nil, fmt.Errorf("compact: %w", err)
	}
	ext, err := r.extractor.Extract(ctx, rec, payload)
	if errors.Is(err, extraction.ErrPayloadTooLarge) {
		r.log.Warn().Str("sku", rec.SKU).Msgf("[PAYLOAD_TOO_LARGE] retrying with %d visible chars", r.opts.ShrunkVisibleChars)
		payload, err = crawler.Compact(page.HTML, r.opts.ShrunkVisibleChars)
		if err != nil {
			return nil, fmt.Errorf("compact: %w", err)
		}
		ext, err = r.extractor.Extract(ctx, rec, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return ext, nil
}

// writeRow reports out on success. A row the writer already holds is a skip.
func (r *Runner) writeRow(row model.SchemaRow, out outcome) (outcome, error) {
	if err := r.writer.Write(row); err != nil {
		if errors.Is(err, catalog.ErrDuplicateSKU) {
			return rowSkipped, nil
		}
		return out, fmt.Errorf("write row %s: %w", row.Get(model.FieldSKU), err)
	}
	return out, nil
}

func (r *Runner) rowDelay() time.Duration {
	lo, hi := r.opts.RowDelayMin, r.opts.RowDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
