package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/bizscout/internal/business"
)

const (
	maxImages = 50
	maxLinks  = 100
	maxCTAs   = 10
)

var ctaKeywords = []string{
	"book", "schedule", "appointment", "contact", "call", "reserve",
	"get started", "sign up", "free consultation", "request", "order",
}

// Page builds a website profile from a parsed document. pageURL is used
// to resolve relative references and decide which links are internal.
func Page(doc *goquery.Document, pageURL string) business.WebsiteProfile {
	p := business.EmptyProfile(pageURL)
	base, _ := url.Parse(pageURL)

	p.Catalog = AnalysisCatalog(doc)
	p.Grading = GradingCatalog(doc)

	p.MetaTitle = textOf(doc.Find("title").First())
	p.MetaDescription = strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", ""))
	p.H1Tags = H1Tags(doc)
	p.Images = Images(doc, base)
	p.Links = InternalLinks(doc, base)
	p.HasViewport = doc.Find(`meta[name="viewport"]`).Length() > 0
	p.CTAButtons = CallsToAction(doc)
	p.TextLength = TextLength(doc)
	p.InstagramURL = InstagramLink(doc, base)
	return p
}

// H1Tags returns the non-empty h1 texts.
func H1Tags(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if text := textOf(s); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// Images inventories the first 50 img elements that carry a src.
func Images(doc *goquery.Document, base *url.URL) []business.Image {
	out := []business.Image{}
	imgs := doc.Find("img")
	if imgs.Length() > maxImages {
		imgs = imgs.Slice(0, maxImages)
	}
	imgs.Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		out = append(out, business.Image{
			Src:    Resolve(base, src),
			Alt:    alt,
			HasAlt: alt != "",
		})
	})
	return out
}

// InternalLinks returns links among the first 100 anchors that stay on
// the page's host.
func InternalLinks(doc *goquery.Document, base *url.URL) []business.Link {
	out := []business.Link{}
	if base == nil {
		return out
	}
	anchors := doc.Find("a[href]")
	if anchors.Length() > maxLinks {
		anchors = anchors.Slice(0, maxLinks)
	}
	anchors.Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		u, err := base.Parse(href)
		if err != nil || u.Host != base.Host {
			return
		}
		out = append(out, business.Link{URL: u.String(), Text: textOf(s)})
	})
	return out
}

// CallsToAction collects button and link texts that read like an action.
func CallsToAction(doc *goquery.Document) []string {
	found := newDedupe(maxCTAs)
	doc.Find("button[class], a[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := textOf(s)
		if containsAny(strings.ToLower(text), ctaKeywords) {
			found.add(text)
		}
		return !found.full()
	})
	return found.out
}

// InstagramLink returns the first anchor pointing at instagram.com.
func InstagramLink(doc *goquery.Document, base *url.URL) string {
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := Resolve(base, s.AttrOr("href", ""))
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		host := strings.ToLower(u.Hostname())
		if host == "instagram.com" || strings.HasSuffix(host, ".instagram.com") {
			link = href
			return false
		}
		return true
	})
	return link
}

// Resolve makes ref absolute against base. Unparseable references are
// returned unchanged.
func Resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
