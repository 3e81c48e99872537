// Package browser drives a real Chromium instance through go-rod for the
// page fetcher.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"catalogprj/internal/config"
	"catalogprj/internal/crawler"
)

// Session is a single stealth page reused for every product of a run.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      zerolog.Logger

	consentTimeout time.Duration
	consentPause   time.Duration
}

var _ crawler.Session = (*Session)(nil)

// Start launches Chromium, opens one stealth page and applies the identity
// from cfg: user agent, accept-language, locale, timezone and viewport.
func Start(cfg config.BrowserConfig, log zerolog.Logger) (*Session, error) {
	bin := cfg.BinPath
	if bin == "" {
		log.Info().Msg("[BROWSER] no binary configured, downloading default")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("lang", cfg.Locale).
		Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion.Duration)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &Session{
		launcher:       l,
		browser:        b,
		log:            log,
		consentTimeout: 2 * time.Second,
		consentPause:   800 * time.Millisecond,
	}

	s.page, err = stealth.Page(b)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	if err := s.applyIdentity(cfg); err != nil {
		s.Close()
		return nil, err
	}

	log.Info().Str("bin", bin).Bool("headless", cfg.Headless).Msg("[BROWSER] started")
	return s, nil
}

func (s *Session) applyIdentity(cfg config.BrowserConfig) error {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if _, err := s.page.SetExtraHeaders([]string{"Accept-Language", cfg.AcceptLanguage}); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}
	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if cfg.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: cfg.Timezone}).Call(s.page); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
	}
	if cfg.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: cfg.Locale}).Call(s.page); err != nil {
			return fmt.Errorf("set locale: %w", err)
		}
	}
	return nil
}

// Navigate loads url and returns once DOMContentLoaded fired.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return classify(err)
	}
	return classify(p.Wait(rod.Eval(`() => document.readyState !== "loading"`)))
}

// DismissConsent clicks the first cookie banner control found, trying the
// strategies in order with a short timeout each.
func (s *Session) DismissConsent(ctx context.Context) (string, bool) {
	for _, st := range consentStrategies {
		p := s.page.Context(ctx).Timeout(s.consentTimeout)
		el, err := st.find(p)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			s.log.Debug().Err(err).Str("strategy", st.name).Msg("[COOKIES] click failed")
			continue
		}
		sleep(ctx, s.consentPause)
		return st.name, true
	}
	return "", false
}

// Wiggle moves the pointer to a random spot, scrolls down a screen or so,
// and moves again. Errors are ignored.
func (s *Session) Wiggle(ctx context.Context) {
	m := s.page.Context(ctx).Mouse
	_ = m.MoveTo(proto.Point{X: randFloat(50, 800), Y: randFloat(50, 600)})
	sleep(ctx, randDuration(200, 600))
	_ = m.Scroll(0, randFloat(500, 1200), 4)
	sleep(ctx, randDuration(400, 900))
	_ = m.MoveTo(proto.Point{X: randFloat(50, 900), Y: randFloat(50, 650)})
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	return classify(err)
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(true, nil)
}

func (s *Session) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close shuts the page, the browser and the launched process. It is safe to
// call on a partially started session.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", crawler.ErrTimeout, err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func randFloat(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func randDuration(loMs, hiMs int) time.Duration {
	return time.Duration(loMs+rand.IntN(hiMs-loMs+1)) * time.Millisecond
}
