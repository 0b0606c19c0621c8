package website

import (
	"context"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/TobiSchelling/bizscout/internal/browser"
	"github.com/TobiSchelling/bizscout/internal/httpx"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; bizscout/1.0; +https://github.com/TobiSchelling/bizscout)"
	maxPageBytes = 2 << 20
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// StaticFetcher downloads pages over plain HTTP.
type StaticFetcher struct {
	client *http.Client
	retry  httpx.RetryConfig
}

// NewStaticFetcher creates a fetcher with the given per-request timeout.
func NewStaticFetcher(timeout time.Duration) *StaticFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.MaxBodyBytes = maxPageBytes
	return &StaticFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		retry: retry,
	}
}

// WithMaxBytes bounds page bodies to n bytes. n <= 0 keeps the default.
func (f *StaticFetcher) WithMaxBytes(n int64) *StaticFetcher {
	if n > 0 {
		f.retry.MaxBodyBytes = n
	}
	return f
}

// Client exposes the underlying HTTP client for feed probes.
func (f *StaticFetcher) Client() *http.Client { return f.client }

// Fetch implements Fetcher.
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	_, body, err := httpx.DoWithRetry(ctx, f.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		req.Header.Set("Accept-Encoding", "br, gzip")
		return req, nil
	}, f.retry)
	if err != nil {
		return "", eris.Wrapf(err, "fetching %s", pageURL)
	}
	return string(body), nil
}

// RenderFetcher loads pages in headless Chrome so scripted content is
// present in the returned HTML.
type RenderFetcher struct {
	session *browser.Session
	timeout time.Duration
	settle  time.Duration
}

// NewRenderFetcher creates a fetcher on session.
func NewRenderFetcher(session *browser.Session, timeout time.Duration) *RenderFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RenderFetcher{session: session, timeout: timeout, settle: 2 * time.Second}
}

// Fetch implements Fetcher.
func (f *RenderFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var html string
	err := f.session.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", eris.Wrapf(err, "rendering %s", pageURL)
	}
	return html, nil
}
