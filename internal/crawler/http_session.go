package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxBodyBytes = 16 << 20

// HTTPSession fetches pages with a plain HTTP client. It renders no
// JavaScript, so it only suits hosts that serve complete markup.
type HTTPSession struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string

	body     string
	finalURL string
}

func NewHTTPSession(userAgent, acceptLanguage string) *HTTPSession {
	return &HTTPSession{
		client:         &http.Client{Timeout: 60 * time.Second},
		userAgent:      userAgent,
		acceptLanguage: acceptLanguage,
	}
}

// Navigate keeps the body of any response, error statuses included, the way
// a browser would render them. A failed navigation leaves nothing loaded.
func (s *HTTPSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.body, s.finalURL = "", ""
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.acceptLanguage != "" {
		req.Header.Set("Accept-Language", s.acceptLanguage)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return wrapTimeout(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return wrapTimeout(err)
	}
	s.body = string(b)
	s.finalURL = resp.Request.URL.String()
	return nil
}

func (s *HTTPSession) DismissConsent(context.Context) (string, bool) { return "", false }

func (s *HTTPSession) Wiggle(context.Context) {}

// WaitFor checks the selector against the loaded markup once; there is no
// script to wait on.
func (s *HTTPSession) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.body))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s not found", ErrTimeout, selector)
	}
	return nil
}

func (s *HTTPSession) HTML(context.Context) (string, error) { return s.body, nil }

func (s *HTTPSession) Screenshot(context.Context) ([]byte, error) { return nil, ErrNoScreenshot }

func (s *HTTPSession) URL() string { return s.finalURL }

func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func wrapTimeout(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
