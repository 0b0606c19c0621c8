package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// skipText lists elements whose text content is never rendered.
var skipText = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
}

// VisibleText concatenates the document's rendered text nodes in order.
func VisibleText(doc *goquery.Document) string {
	var b strings.Builder
	for _, n := range doc.Nodes {
		walkText(n, func(s string) { b.WriteString(s) })
	}
	return b.String()
}

// TextLength counts the runes of every trimmed visible text node.
func TextLength(doc *goquery.Document) int {
	total := 0
	for _, n := range doc.Nodes {
		walkText(n, func(s string) {
			total += utf8.RuneCountInString(strings.TrimSpace(s))
		})
	}
	return total
}

func walkText(n *html.Node, fn func(string)) {
	switch n.Type {
	case html.TextNode:
		fn(n.Data)
		return
	case html.ElementNode:
		if skipText[strings.ToLower(n.Data)] {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// cleanText collapses runs of whitespace to single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textOf(s *goquery.Selection) string {
	return cleanText(s.Text())
}

// dedupe keeps the first occurrence of each value and stops at limit.
type dedupe struct {
	seen  map[string]bool
	out   []string
	limit int
}

func newDedupe(limit int) *dedupe {
	return &dedupe{seen: make(map[string]bool), out: []string{}, limit: limit}
}

func (d *dedupe) add(s string) {
	if d.full() || d.seen[s] {
		return
	}
	d.seen[s] = true
	d.out = append(d.out, s)
}

func (d *dedupe) full() bool {
	return len(d.out) >= d.limit
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
