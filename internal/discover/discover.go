package discover

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
)

const searchBase = "https://www.google.com/maps/search/"

// InfoItem is one of the contact buttons on a place page.
type InfoItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Href string `json:"href"`
}

// RawListing is the unparsed content of a place page.
type RawListing struct {
	Name        string     `json:"name"`
	RatingText  string     `json:"rating"`
	ReviewsText string     `json:"reviews"`
	Hours       string     `json:"hours"`
	Info        []InfoItem `json:"info"`
}

// Browser drives the listing UI.
type Browser interface {
	// SearchListings opens a search page, scrolls its result feed and
	// returns the place links in page order.
	SearchListings(ctx context.Context, searchURL string, scrolls int) ([]string, error)
	// PlaceDetails reads one place page.
	PlaceDetails(ctx context.Context, placeURL string) (RawListing, error)
}

// Discoverer finds candidate businesses on Google Maps.
type Discoverer struct {
	browser     Browser
	detailDelay time.Duration
}

// New creates a Discoverer. detailDelay is slept between place pages.
func New(b Browser, detailDelay time.Duration) *Discoverer {
	return &Discoverer{browser: b, detailDelay: detailDelay}
}

// SearchURL builds the maps search URL for a niche and location.
func SearchURL(niche, location string) string {
	query := strings.TrimSpace(niche) + " in " + strings.TrimSpace(location)
	return searchBase + strings.ReplaceAll(query, " ", "+")
}

// Discover returns up to limit candidates in discovery order. On failure
// the slice is empty and the error explains why.
func (d *Discoverer) Discover(ctx context.Context, niche, location string, limit int) ([]business.Candidate, error) {
	results := []business.Candidate{}
	if limit < 1 {
		return results, nil
	}

	searchURL := SearchURL(niche, location)
	log := zap.L().With(zap.String("niche", niche), zap.String("location", location))
	log.Info("searching listings", zap.String("url", searchURL))

	links, err := d.browser.SearchListings(ctx, searchURL, max(1, limit/5))
	if err != nil {
		log.Warn("listing search failed", zap.Error(err))
		return results, eris.Wrap(err, "searching listings")
	}
	links = uniqueLinks(links)
	log.Info("found listing links", zap.Int("count", len(links)))

	for i, link := range links {
		if len(results) >= limit {
			break
		}
		if i > 0 && d.detailDelay > 0 {
			if err := sleep(ctx, d.detailDelay); err != nil {
				break
			}
		}

		raw, err := d.browser.PlaceDetails(ctx, link)
		if err != nil {
			log.Warn("reading listing failed", zap.String("listing", link), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		c, ok := Normalize(raw, link, location)
		if !ok {
			log.Debug("dropping listing without name", zap.String("listing", link))
			continue
		}
		results = append(results, c)
		log.Info("discovered business", zap.String("business", c.Name))
	}
	return results, nil
}

func uniqueLinks(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

var (
	ratingRe  = regexp.MustCompile(`[\d.]+`)
	reviewsRe = regexp.MustCompile(`[\d,]+`)
)

// Normalize converts a raw place page into a candidate. Listings without
// a name are rejected.
func Normalize(raw RawListing, listingURL, location string) (business.Candidate, bool) {
	name := cleanText(raw.Name)
	if name == "" {
		return business.Candidate{}, false
	}

	c := business.Candidate{
		Name:         name,
		Location:     location,
		Rating:       ParseRating(raw.RatingText),
		ReviewsCount: ParseReviews(raw.ReviewsText),
		Hours:        cleanText(raw.Hours),
		ListingURL:   listingURL,
	}

	for _, item := range raw.Info {
		id := strings.ToLower(item.ID)
		switch {
		case strings.Contains(id, "address"):
			if c.Address == "" {
				c.Address = cleanText(item.Text)
			}
		case strings.Contains(id, "phone"):
			if c.Phone == "" {
				c.Phone = cleanText(item.Text)
			}
		case strings.Contains(id, "authority") || strings.HasPrefix(item.Href, "http"):
			if c.Website == "" {
				c.Website = NormalizeWebsiteURL(item.Href)
			}
		}
	}
	return c, true
}

// ParseRating extracts a 0-5 rating, or nil when none can be read.
func ParseRating(text string) *float64 {
	m := ratingRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// ParseReviews extracts a review count, or nil when none can be read.
func ParseReviews(text string) *int {
	m := strings.ReplaceAll(reviewsRe.FindString(text), ",", "")
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

// NormalizeWebsiteURL unwraps Google redirect links and drops links that
// point back into Google.
func NormalizeWebsiteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "google.") && u.Path == "/url" {
		if target := u.Query().Get("q"); target != "" {
			return NormalizeWebsiteURL(target)
		}
		if target := u.Query().Get("url"); target != "" {
			return NormalizeWebsiteURL(target)
		}
		return ""
	}
	if strings.Contains(host, "google.") || strings.Contains(raw, "/maps") {
		return ""
	}
	if u.Scheme == "" {
		return "https://" + raw
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return raw
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
