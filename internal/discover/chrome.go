package discover

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/TobiSchelling/bizscout/internal/browser"
)

// ChromeBrowser implements Browser on a shared chromedp session.
type ChromeBrowser struct {
	session     *browser.Session
	timeout     time.Duration
	scrollDelay time.Duration
}

// NewChromeBrowser wraps session. timeout bounds each page visit.
func NewChromeBrowser(session *browser.Session, timeout, scrollDelay time.Duration) *ChromeBrowser {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChromeBrowser{session: session, timeout: timeout, scrollDelay: scrollDelay}
}

// SearchListings implements Browser.
func (b *ChromeBrowser) SearchListings(ctx context.Context, searchURL string, scrolls int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var links []string
	err := b.session.Run(ctx,
		chromedp.Navigate(searchURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(consentScript, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var hasFeed bool
			if err := chromedp.Evaluate(hasFeedScript, &hasFeed).Do(ctx); err != nil {
				return err
			}
			if !hasFeed {
				// A single match opens its place page directly.
				return nil
			}
			for i := 0; i < scrolls; i++ {
				if err := chromedp.Evaluate(scrollScript, nil).Do(ctx); err != nil {
					return err
				}
				if err := sleep(ctx, b.scrollDelay); err != nil {
					return err
				}
			}
			return nil
		}),
		chromedp.Evaluate(linksScript, &links),
	)
	if err != nil {
		return nil, err
	}
	return links, nil
}

// PlaceDetails implements Browser.
func (b *ChromeBrowser) PlaceDetails(ctx context.Context, placeURL string) (RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var raw RawListing
	err := b.session.Run(ctx,
		chromedp.Navigate(placeURL),
		chromedp.WaitVisible("h1", chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(detailScript, &raw),
	)
	return raw, err
}

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) { btn.click(); return true; }
  }
  return false;
})()`

const hasFeedScript = `!!document.querySelector('[role="feed"]')`

const scrollScript = `(function () {
  const feed = document.querySelector('[role="feed"]');
  if (feed) { feed.scrollBy(0, 1000); }
  return true;
})()`

const linksScript = `(function () {
  const links = Array.from(document.querySelectorAll('a[href*="/maps/place/"]'))
    .map(a => a.href)
    .filter(Boolean);
  if (links.length === 0 && location.href.includes('/maps/place/')) {
    links.push(location.href);
  }
  return links;
})()`

const detailScript = `(function () {
  const text = el => el ? (el.innerText || el.textContent || '').trim() : '';
  const out = { name: '', rating: '', reviews: '', hours: '', info: [] };
  out.name = text(document.querySelector('h1'));

  const rating = document.querySelector('[jsaction*="pane.rating"]') ||
    document.querySelector('span[aria-label*="stars"]');
  if (rating) { out.rating = rating.getAttribute('aria-label') || text(rating); }

  const reviews = document.querySelector('button[jsaction*="reviewChart"]') ||
    document.querySelector('span[aria-label*="review"]');
  if (reviews) { out.reviews = text(reviews) || reviews.getAttribute('aria-label') || ''; }

  document.querySelectorAll('button[data-item-id], a[data-item-id]').forEach(el => {
    out.info.push({
      id: el.getAttribute('data-item-id') || '',
      text: text(el),
      href: el.getAttribute('href') || ''
    });
  });

  const hours = document.querySelector('[data-item-id^="oh"]');
  if (hours) { out.hours = hours.getAttribute('aria-label') || text(hours); }
  return out;
})()`
