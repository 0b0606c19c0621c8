package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/bizscout/internal/business"
)

const (
	maxServices        = 20
	maxPrices          = 20
	maxAnalysisTeam    = 10
	maxGradingTeam     = 15
	gradingSectionScan = 15
	priceContextRunes  = 50
)

var (
	priceRe = regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)

	analysisTitleRe = regexp.MustCompile(`(?i)\b(MD|DO|DDS|DMD|RN|NP|PA|PhD|PT|OT|DC|LAc|LCSW|MBA|Esq|CPA|CFP)\b`)
	gradingTitleRe  = regexp.MustCompile(`(?i)\b(MD|DDS|RN|NP|PA|DMD|DO)\b`)

	serviceContainerKeywords = []string{"service", "treatment", "menu", "offer", "procedure"}
	serviceHeadingKeywords   = []string{"service", "treatment", "procedure", "offering", "specialt"}
	teamContainerKeywords    = []string{"team", "staff", "doctor", "provider", "about", "meet"}
	teamHeadingKeywords      = []string{"team", "staff", "doctor", "dr.", "provider", "specialist"}
)

const (
	containerSelector = "section, div, article, aside, main, ul, ol"
	headingSelector   = "h2, h3, h4"
	blockSelector     = "section, div"
)

// AnalysisCatalog mines services, prices and team members using
// class/id keyword containers first and heading-adjacent lists second.
func AnalysisCatalog(doc *goquery.Document) business.Catalog {
	return business.Catalog{
		Services:    analysisServices(doc),
		Prices:      Prices(VisibleText(doc)),
		TeamMembers: analysisTeam(doc),
	}
}

// GradingCatalog mines the same fields by scanning the block around
// keyworded headings.
func GradingCatalog(doc *goquery.Document) business.Catalog {
	return business.Catalog{
		Services:    gradingServices(doc),
		Prices:      Prices(VisibleText(doc)),
		TeamMembers: gradingTeam(doc),
	}
}

func analysisServices(doc *goquery.Document) []string {
	found := newDedupe(maxServices)
	keep := func(_ int, li *goquery.Selection) bool {
		text := textOf(li)
		if text != "" && runeLen(text) < 100 {
			found.add(text)
		}
		return !found.full()
	}

	containersWithTokens(doc, serviceContainerKeywords).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		c.Find("li").EachWithBreak(keep)
		return !found.full()
	})
	if len(found.out) > 0 {
		return found.out
	}

	doc.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !containsAny(strings.ToLower(textOf(h)), serviceContainerKeywords) {
			return true
		}
		if list := h.Next(); list.Is("ul, ol") {
			list.Find("li").EachWithBreak(keep)
		}
		return !found.full()
	})
	return found.out
}

func analysisTeam(doc *goquery.Document) []string {
	found := newDedupe(maxAnalysisTeam)
	scan := func(block *goquery.Selection) {
		block.Find("p, h4, h5, li").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := textOf(el)
			if analysisTitleRe.MatchString(text) || plausibleName(text, 6, 99) {
				found.add(text)
			}
			return !found.full()
		})
	}

	containersWithTokens(doc, teamContainerKeywords).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		scan(c)
		return !found.full()
	})
	doc.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if found.full() {
			return false
		}
		if containsAny(strings.ToLower(textOf(h)), teamHeadingKeywords) {
			if block := h.ParentsFiltered(blockSelector).First(); block.Length() > 0 {
				scan(block)
			}
		}
		return !found.full()
	})
	return found.out
}

func gradingServices(doc *goquery.Document) []string {
	found := newDedupe(maxServices)
	doc.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !containsAny(strings.ToLower(textOf(h)), serviceHeadingKeywords) {
			return true
		}
		block := h.ParentsFiltered(blockSelector).First()
		if block.Length() == 0 {
			return true
		}
		items := block.Find("li, p, h4, h5")
		if items.Length() > gradingSectionScan {
			items = items.Slice(0, gradingSectionScan)
		}
		items.Each(func(_ int, el *goquery.Selection) {
			text := textOf(el)
			if n := runeLen(text); n > 5 && n < 100 {
				found.add(text)
			}
		})
		return !found.full()
	})
	return found.out
}

func gradingTeam(doc *goquery.Document) []string {
	found := newDedupe(maxGradingTeam)
	doc.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !containsAny(strings.ToLower(textOf(h)), teamHeadingKeywords) {
			return true
		}
		block := h.ParentsFiltered(blockSelector).First()
		block.Find("p, h4, h5, li").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := textOf(el)
			if gradingTitleRe.MatchString(text) || plausibleName(text, 6, 99) {
				found.add(text)
			}
			return !found.full()
		})
		return !found.full()
	})
	return found.out
}

// Prices finds dollar amounts in text, each with up to 50 runes of
// surrounding context. A price token is reported once.
func Prices(text string) []business.PriceMention {
	out := []business.PriceMention{}
	seen := make(map[string]bool)
	for _, loc := range priceRe.FindAllStringIndex(text, -1) {
		price := text[loc[0]:loc[1]]
		if seen[price] {
			continue
		}
		seen[price] = true
		start := backRunes(text, loc[0], priceContextRunes)
		end := forwardRunes(text, loc[1], priceContextRunes)
		out = append(out, business.PriceMention{
			Price:   price,
			Context: strings.TrimSpace(text[start:end]),
		})
		if len(out) >= maxPrices {
			break
		}
	}
	return out
}

func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func forwardRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// containersWithTokens selects container elements whose class or id
// tokens contain one of the keywords.
func containersWithTokens(doc *goquery.Document, keywords []string) *goquery.Selection {
	return doc.Find(containerSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		tokens := strings.Fields(strings.ToLower(s.AttrOr("class", "")))
		if id := strings.ToLower(strings.TrimSpace(s.AttrOr("id", ""))); id != "" {
			tokens = append(tokens, id)
		}
		for _, tok := range tokens {
			if containsAny(tok, keywords) {
				return true
			}
		}
		return false
	})
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func plausibleName(s string, minLen, maxLen int) bool {
	n := runeLen(s)
	return n >= minLen && n <= maxLen && !strings.HasPrefix(s, "$")
}
