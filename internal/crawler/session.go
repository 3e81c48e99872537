package crawler

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout marks a navigation or wait that ran past its deadline.
	ErrTimeout = errors.New("navigation timed out")
	// ErrNoScreenshot is returned by sessions that cannot capture the page.
	ErrNoScreenshot = errors.New("screenshot not supported")
)

// Session is one page-rendering context shared by the whole run. The
// browser-backed implementation lives in internal/browser; HTTPSession is
// the plain-HTTP fallback.
type Session interface {
	// Navigate loads url and waits until the DOM content is ready.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// DismissConsent tries the known cookie-banner strategies in order and
	// returns the one that clicked.
	DismissConsent(ctx context.Context) (string, bool)
	// Wiggle moves the pointer and scrolls a little.
	Wiggle(ctx context.Context)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// URL is the address of the currently loaded page after redirects.
	URL() string
	Close() error
}
