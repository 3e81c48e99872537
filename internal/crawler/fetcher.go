package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalogprj/internal/observability"
)

// ErrFetchExhausted is returned once every attempt for a page has failed.
var ErrFetchExhausted = errors.New("fetch attempts exhausted")

const (
	amazonReadySelector  = "#productTitle, #title, #centerCol"
	genericReadySelector = "h1"
)

// FetchState is the position of a page in the fetch lifecycle.
type FetchState int

const (
	StateCacheCheck FetchState = iota
	StateFetching
	StateSaved
	StateExhausted
)

func (s FetchState) String() string {
	switch s {
	case StateCacheCheck:
		return "cache_check"
	case StateFetching:
		return "fetching"
	case StateSaved:
		return "saved"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// HTMLStore is the snapshot cache the fetcher reads and writes.
type HTMLStore interface {
	Fresh(sku string) (string, bool, error)
	Save(sku, html string) (int64, error)
	SaveScreenshot(sku string, png []byte) (string, error)
}

type FetchOptions struct {
	MaxAttempts  int
	NavTimeout   time.Duration
	SettleDelay  time.Duration
	ReadyTimeout time.Duration
	// FinalDelay replaces the readiness wait on the last attempt.
	FinalDelay time.Duration
}

// Page is the outcome of one Fetch.
type Page struct {
	HTML      string
	FinalURL  string
	FromCache bool
	Attempts  int
	State     FetchState
}

// PageFetcher turns a product URL into HTML, preferring the snapshot cache
// and otherwise driving a Session through a bounded number of attempts.
type PageFetcher struct {
	session Session
	store   HTMLStore
	opts    FetchOptions
	log     zerolog.Logger
	sleep   func(context.Context, time.Duration) error
}

func NewPageFetcher(session Session, store HTMLStore, opts FetchOptions, log zerolog.Logger) *PageFetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &PageFetcher{session: session, store: store, opts: opts, log: log, sleep: sleepContext}
}

// Fetch returns the HTML for sku. A fresh snapshot is returned without any
// navigation. Otherwise the page is loaded up to MaxAttempts times; the
// first success is persisted with a screenshot. When every attempt fails,
// whatever the session holds is persisted and ErrFetchExhausted is returned.
func (f *PageFetcher) Fetch(ctx context.Context, sku, target string) (Page, error) {
	page := Page{State: StateCacheCheck}

	html, ok, err := f.store.Fresh(sku)
	if err != nil {
		f.log.Warn().Err(err).Str("sku", sku).Msg("[HTML_CACHE] read failed, fetching")
	}
	if ok {
		observability.CacheHitsTotal.WithLabelValues("html").Inc()
		f.log.Info().Str("sku", sku).Int("bytes", len(html)).Msg("[HTML_CACHE_HIT]")
		page.HTML, page.FromCache, page.State = html, true, StateSaved
		return page, nil
	}

	page.State = StateFetching
	f.log.Info().Str("sku", sku).Msgf("[FETCH] %s", target)

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		page.Attempts = attempt
		f.log.Info().Str("sku", sku).Msgf("[ATTEMPT] %d/%d", attempt, f.opts.MaxAttempts)

		html, err := f.attempt(ctx, sku, target, attempt == f.opts.MaxAttempts)
		if err == nil {
			observability.FetchAttemptsTotal.WithLabelValues("ok").Inc()
			page.HTML, page.FinalURL = html, f.session.URL()
			f.persist(ctx, sku, html)
			page.State = StateSaved
			return page, nil
		}

		lastErr = err
		result := "error"
		if errors.Is(err, ErrTimeout) {
			result = "timeout"
		}
		observability.FetchAttemptsTotal.WithLabelValues(result).Inc()
		f.log.Warn().Err(err).Str("sku", sku).Msgf("[ATTEMPT] %d/%d %s", attempt, f.opts.MaxAttempts, strings.ToUpper(result))

		if ctx.Err() != nil {
			break
		}
	}

	page.State = StateExhausted
	page.FinalURL = f.session.URL()
	html, err = f.session.HTML(ctx)
	if err != nil {
		html = ""
	}
	page.HTML = html
	f.persist(ctx, sku, html)
	f.log.Error().Err(lastErr).Str("sku", sku).Msgf("[SCRAPE_FAIL] after %d attempts", page.Attempts)
	return page, fmt.Errorf("%w after %d attempts: %v", ErrFetchExhausted, page.Attempts, lastErr)
}

func (f *PageFetcher) attempt(ctx context.Context, sku, target string, final bool) (string, error) {
	if err := f.session.Navigate(ctx, target, f.opts.NavTimeout); err != nil {
		return "", err
	}
	if err := f.sleep(ctx, f.opts.SettleDelay); err != nil {
		return "", err
	}
	if strategy, ok := f.session.DismissConsent(ctx); ok {
		f.log.Info().Str("sku", sku).Msgf("[COOKIES_ACCEPTED] %s", strategy)
	}
	f.session.Wiggle(ctx)

	if final {
		if err := f.sleep(ctx, f.opts.FinalDelay); err != nil {
			return "", err
		}
	} else {
		// pages that never show the element are still captured
		_ = f.session.WaitFor(ctx, ReadySelector(target), f.opts.ReadyTimeout)
	}
	return f.session.HTML(ctx)
}

// persist writes the snapshot and a screenshot. Failures are logged only.
func (f *PageFetcher) persist(ctx context.Context, sku, html string) {
	n, err := f.store.Save(sku, html)
	if err != nil {
		f.log.Error().Err(err).Str("sku", sku).Msg("[SAVED] html write failed")
		return
	}
	shot := "-"
	if png, err := f.session.Screenshot(ctx); err == nil {
		if name, err := f.store.SaveScreenshot(sku, png); err == nil {
			shot = name
		} else {
			f.log.Warn().Err(err).Str("sku", sku).Msg("[SAVED] screenshot write failed")
		}
	} else if !errors.Is(err, ErrNoScreenshot) {
		f.log.Warn().Err(err).Str("sku", sku).Msg("[SAVED] screenshot failed")
	}
	f.log.Info().Str("sku", sku).Int64("bytes", n).Str("screenshot", shot).Msg("[SAVED]")
}

// ReadySelector picks the element that signals a rendered product page.
func ReadySelector(target string) string {
	u, err := url.Parse(target)
	if err == nil && strings.Contains(strings.ToLower(u.Hostname()), "amazon.") {
		return amazonReadySelector
	}
	return genericReadySelector
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
