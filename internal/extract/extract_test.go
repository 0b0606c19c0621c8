package extract

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

var samplePage = `<!DOCTYPE html>
<html>
<head>
  <title> Glow Medspa | Austin </title>
  <meta name="description" content=" Botox, fillers and facials in Austin. ">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>.hero { color: red; }</style>
  <script>var price = "$9999";</script>
</head>
<body>
  <h1>Glow Medspa</h1>
  <h1>  </h1>
  <div class="services-menu">
    <ul>
      <li>Botox</li>
      <li>Dermal Fillers</li>
      <li>Botox</li>
      <li>` + longText + `</li>
    </ul>
  </div>
  <section id="our-team">
    <h2>Meet the Team</h2>
    <p>Dr. Jane Doe, MD</p>
    <p>Sam Lee, RN</p>
    <p>$50 off</p>
  </section>
  <p>Botox $399, Filler $650.00 and again Botox $399 on weekends.</p>
  <img src="/img/hero.jpg" alt="Hero">
  <img src="https://cdn.example.com/a.png">
  <img alt="no source">
  <a href="/contact" class="btn">Book Now</a>
  <a href="https://example.com/about">About</a>
  <a href="https://other.com/page">Elsewhere</a>
  <button class="cta">Free Consultation</button>
  <a class="btn" href="/book">Book Now</a>
  <a href="https://www.instagram.com/glowmedspa/">Instagram</a>
</body>
</html>`

var longText = strings.Repeat("x", 120)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing html: %v", err)
	}
	return doc
}

func TestPricesFromText(t *testing.T) {
	prices := Prices("Botox $399, Filler $650.00")
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if prices[0].Price != "$399" || prices[1].Price != "$650.00" {
		t.Errorf("unexpected prices: %+v", prices)
	}
	if prices[0].Context != "Botox $399, Filler $650.00" {
		t.Errorf("unexpected context %q", prices[0].Context)
	}
}

func TestPricesDeduplicated(t *testing.T) {
	text := "Botox $399 per area. " + strings.Repeat("filler text ", 20) + "Lip flip also $399."
	prices := Prices(text)
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %d: %+v", len(prices), prices)
	}
	if !strings.HasPrefix(prices[0].Context, "Botox $399") {
		t.Errorf("expected first occurrence context, got %q", prices[0].Context)
	}
}

func TestPricesContextWindow(t *testing.T) {
	text := strings.Repeat("a", 80) + "$1,250.00" + strings.Repeat("b", 80)
	prices := Prices(text)
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %d", len(prices))
	}
	want := strings.Repeat("a", 50) + "$1,250.00" + strings.Repeat("b", 50)
	if prices[0].Context != want {
		t.Errorf("unexpected context window %q", prices[0].Context)
	}
}

func TestPricesCapped(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		b.WriteString("$")
		b.WriteString(strings.Repeat("1", i))
		b.WriteString(" ")
	}
	if got := len(Prices(b.String())); got != 20 {
		t.Errorf("expected 20 prices, got %d", got)
	}
}

func TestPageProfile(t *testing.T) {
	p := Page(mustDoc(t, samplePage), "https://example.com/")

	if p.MetaTitle != "Glow Medspa | Austin" {
		t.Errorf("unexpected title %q", p.MetaTitle)
	}
	if p.MetaDescription != "Botox, fillers and facials in Austin." {
		t.Errorf("unexpected description %q", p.MetaDescription)
	}
	if len(p.H1Tags) != 1 || p.H1Tags[0] != "Glow Medspa" {
		t.Errorf("unexpected h1 tags %v", p.H1Tags)
	}
	if !p.HasViewport {
		t.Error("expected viewport to be detected")
	}

	if len(p.Services) != 2 || p.Services[0] != "Botox" || p.Services[1] != "Dermal Fillers" {
		t.Errorf("unexpected services %v", p.Services)
	}

	if len(p.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(p.Images))
	}
	if p.Images[0].Src != "https://example.com/img/hero.jpg" || !p.Images[0].HasAlt {
		t.Errorf("unexpected first image %+v", p.Images[0])
	}
	if p.Images[1].HasAlt {
		t.Error("expected second image to lack alt text")
	}

	for _, l := range p.Links {
		if !strings.HasPrefix(l.URL, "https://example.com/") {
			t.Errorf("external link leaked into internal links: %s", l.URL)
		}
	}
	if len(p.Links) != 3 {
		t.Errorf("expected 3 internal links, got %d: %+v", len(p.Links), p.Links)
	}

	if len(p.CTAButtons) != 2 || p.CTAButtons[0] != "Book Now" || p.CTAButtons[1] != "Free Consultation" {
		t.Errorf("unexpected CTAs %v", p.CTAButtons)
	}
	if p.InstagramURL != "https://www.instagram.com/glowmedspa/" {
		t.Errorf("unexpected instagram url %q", p.InstagramURL)
	}

	for _, price := range p.Prices {
		if price.Price == "$9999" {
			t.Error("script content must not produce prices")
		}
	}
	// "$50 off" in the team block is visible text too.
	if len(p.Prices) != 3 || p.Prices[0].Price != "$50" {
		t.Errorf("expected 3 prices starting with $50, got %+v", p.Prices)
	}
	if p.TextLength == 0 {
		t.Error("expected non-zero text length")
	}
}

func TestAnalysisTeam(t *testing.T) {
	p := Page(mustDoc(t, samplePage), "https://example.com/")
	want := []string{"Dr. Jane Doe, MD", "Sam Lee, RN"}
	if len(p.TeamMembers) != len(want) {
		t.Fatalf("expected %v, got %v", want, p.TeamMembers)
	}
	for i := range want {
		if p.TeamMembers[i] != want[i] {
			t.Errorf("team[%d]: expected %q, got %q", i, want[i], p.TeamMembers[i])
		}
	}
}

func TestAnalysisServicesHeadingFallback(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<h3>Our Treatments</h3>
		<ul><li>Microneedling</li><li>Chemical Peel</li></ul>
		<h3>Hours</h3>
		<ul><li>Mon-Fri</li></ul>
	</body></html>`)
	services := AnalysisCatalog(doc).Services
	if len(services) != 2 || services[0] != "Microneedling" || services[1] != "Chemical Peel" {
		t.Errorf("unexpected services %v", services)
	}
}

func TestAnalysisTeamCappedAtTen(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div class="staff">`)
	for i := 0; i < 14; i++ {
		b.WriteString("<p>Provider number ")
		b.WriteString(strings.Repeat("i", i+1))
		b.WriteString("</p>")
	}
	b.WriteString(`</div></body></html>`)
	if got := len(AnalysisCatalog(mustDoc(t, b.String())).TeamMembers); got != 10 {
		t.Errorf("expected 10 team members, got %d", got)
	}
}

func TestGradingCatalog(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><section><h2>Our Services</h2><ul>`)
	for i := 0; i < 18; i++ {
		b.WriteString("<li>Service item ")
		b.WriteString(strings.Repeat("s", i+1))
		b.WriteString("</li>")
	}
	b.WriteString(`</ul></section><div><h3>Our Doctors</h3>`)
	for i := 0; i < 20; i++ {
		b.WriteString("<p>Doctor ")
		b.WriteString(strings.Repeat("d", i+1))
		b.WriteString(" DDS</p>")
	}
	b.WriteString(`</div></body></html>`)

	c := GradingCatalog(mustDoc(t, b.String()))
	if len(c.Services) != 15 {
		t.Errorf("expected 15 services from the first scanned items, got %d", len(c.Services))
	}
	if len(c.TeamMembers) != 15 {
		t.Errorf("expected team capped at 15, got %d", len(c.TeamMembers))
	}
}

func TestEmptyPage(t *testing.T) {
	p := Page(mustDoc(t, ""), "https://example.com")
	if p.TextLength != 0 || p.HasViewport || p.MetaTitle != "" || p.InstagramURL != "" {
		t.Errorf("expected empty signals, got %+v", p)
	}
	if p.Services == nil || p.Prices == nil || p.TeamMembers == nil || p.Images == nil ||
		p.Links == nil || p.CTAButtons == nil || p.H1Tags == nil {
		t.Error("expected non-nil empty collections")
	}
}

func TestPageDeterministic(t *testing.T) {
	base := Page(mustDoc(t, samplePage), "https://example.com/")
	first, _ := json.Marshal(base)
	for i := 0; i < 5; i++ {
		p := Page(mustDoc(t, samplePage), "https://example.com/")
		again, _ := json.Marshal(p)
		if string(again) != string(first) {
			t.Fatal("expected identical profiles for identical input")
		}
		if !reflect.DeepEqual(p.Grading, base.Grading) {
			t.Fatalf("expected identical grading catalogs, got %+v and %+v", p.Grading, base.Grading)
		}
	}
}

func TestInstagramLinkSubdomainOnly(t *testing.T) {
	doc := mustDoc(t, `<a href="https://notinstagram.com/x">x</a><a href="https://instagram.com/realone">y</a>`)
	if got := InstagramLink(doc, nil); got != "https://instagram.com/realone" {
		t.Errorf("unexpected instagram link %q", got)
	}
}
