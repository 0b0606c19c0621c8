// Package website turns a business homepage into a WebsiteProfile.
package website

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/extract"
)

const maxExcerptRunes = 300

// ErrHostNotFound is returned when the site's host does not resolve.
var ErrHostNotFound = eris.New("website host does not resolve")

// Options tunes optional enrichment.
type Options struct {
	// Hosts preflights DNS before fetching. Nil skips the check.
	Hosts HostChecker
	// FeedClient fetches advertised RSS/Atom feeds. Nil skips the probe.
	FeedClient *http.Client
	// DetectLanguage enables language detection on the visible text.
	DetectLanguage bool
}

// Extractor fetches and analyses business websites.
type Extractor struct {
	fetcher Fetcher
	opts    Options
}

// NewExtractor creates an Extractor around fetcher.
func NewExtractor(fetcher Fetcher, opts Options) *Extractor {
	return &Extractor{fetcher: fetcher, opts: opts}
}

// Extract fetches pageURL and builds its profile. Any failure yields the
// empty profile alongside the error, so callers can always use the result.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (business.WebsiteProfile, error) {
	empty := business.EmptyProfile(pageURL)

	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return empty, eris.Errorf("invalid website url %q", pageURL)
	}

	if e.opts.Hosts != nil {
		ok, err := e.opts.Hosts.Exists(ctx, u.Hostname())
		if err != nil {
			zap.L().Debug("dns preflight inconclusive", zap.String("host", u.Hostname()), zap.Error(err))
		}
		if !ok {
			return empty, eris.Wrapf(ErrHostNotFound, "host %s", u.Hostname())
		}
	}

	html, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return empty, err
	}

	profile, err := e.Analyse(ctx, html, pageURL)
	if err != nil {
		return empty, err
	}
	return profile, nil
}

// Analyse builds a profile from already fetched HTML.
func (e *Extractor) Analyse(ctx context.Context, html, pageURL string) (business.WebsiteProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return business.EmptyProfile(pageURL), eris.Wrap(err, "parsing html")
	}

	profile := extract.Page(doc, pageURL)
	profile.Excerpt = excerpt(html, pageURL)

	if e.opts.DetectLanguage {
		profile.Language = DetectLanguage(extract.VisibleText(doc))
	}

	if e.opts.FeedClient != nil {
		base, _ := url.Parse(pageURL)
		if feedURL := FeedLink(doc, base); feedURL != "" {
			feed, err := probeFeed(ctx, e.opts.FeedClient, feedURL)
			if err != nil {
				zap.L().Debug("feed probe failed", zap.String("feed", feedURL), zap.Error(err))
			} else {
				profile.Feed = feed
			}
		}
	}
	return profile, nil
}

func excerpt(html, pageURL string) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.Excerpt)
	if text == "" {
		text = strings.Join(strings.Fields(article.TextContent), " ")
	}
	if utf8.RuneCountInString(text) > maxExcerptRunes {
		text = strings.TrimSpace(string([]rune(text)[:maxExcerptRunes])) + "..."
	}
	return text
}

// FeedLink returns the first advertised RSS or Atom feed, resolved
// against base.
func FeedLink(doc *goquery.Document, base *url.URL) string {
	sel := doc.Find(`link[rel="alternate"][type="application/rss+xml"], link[rel="alternate"][type="application/atom+xml"]`).First()
	href := strings.TrimSpace(sel.AttrOr("href", ""))
	if href == "" {
		return ""
	}
	return extract.Resolve(base, href)
}

func probeFeed(ctx context.Context, client *http.Client, feedURL string) (*business.FeedSummary, error) {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "parsing feed %s", feedURL)
	}

	summary := &business.FeedSummary{
		URL:       feedURL,
		Title:     strings.TrimSpace(feed.Title),
		ItemCount: len(feed.Items),
	}
	for _, item := range feed.Items {
		t := item.PublishedParsed
		if t == nil {
			t = item.UpdatedParsed
		}
		if t == nil {
			continue
		}
		if s := t.UTC().Format("2006-01-02"); s > summary.LatestPost {
			summary.LatestPost = s
		}
	}
	return summary, nil
}
