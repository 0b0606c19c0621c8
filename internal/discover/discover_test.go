package discover

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubBrowser serves canned search results and place pages.
type stubBrowser struct {
	links     []string
	searchErr error
	places    map[string]RawListing
	placeErr  map[string]error

	searchURL string
	scrolls   int
	visited   []string
}

func (s *stubBrowser) SearchListings(_ context.Context, searchURL string, scrolls int) ([]string, error) {
	s.searchURL = searchURL
	s.scrolls = scrolls
	return s.links, s.searchErr
}

func (s *stubBrowser) PlaceDetails(_ context.Context, placeURL string) (RawListing, error) {
	s.visited = append(s.visited, placeURL)
	if err := s.placeErr[placeURL]; err != nil {
		return RawListing{}, err
	}
	return s.places[placeURL], nil
}

func placeLink(i int) string {
	return fmt.Sprintf("https://www.google.com/maps/place/biz-%d", i)
}

func manyPlaces(n int) *stubBrowser {
	b := &stubBrowser{places: map[string]RawListing{}}
	for i := 0; i < n; i++ {
		link := placeLink(i)
		b.links = append(b.links, link)
		b.places[link] = RawListing{Name: fmt.Sprintf("Business %d", i)}
	}
	return b
}

func TestDiscoverRespectsLimit(t *testing.T) {
	for _, limit := range []int{1, 5, 10, 50} {
		b := manyPlaces(60)
		got, err := New(b, 0).Discover(context.Background(), "medspas", "Austin, TX", limit)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) > limit {
			t.Errorf("limit %d: got %d candidates", limit, len(got))
		}
		if len(got) != limit {
			t.Errorf("limit %d: expected exactly %d with enough listings, got %d", limit, limit, len(got))
		}
	}
}

func TestDiscoverSearchURLAndScrolls(t *testing.T) {
	b := manyPlaces(3)
	New(b, 0).Discover(context.Background(), "med spas", "Austin, TX", 12)

	want := "https://www.google.com/maps/search/med+spas+in+Austin,+TX"
	if b.searchURL != want {
		t.Errorf("expected %q, got %q", want, b.searchURL)
	}
	if b.scrolls != 2 {
		t.Errorf("expected 2 scrolls for limit 12, got %d", b.scrolls)
	}
}

func TestDiscoverDedupesAndDropsNameless(t *testing.T) {
	b := &stubBrowser{
		links: []string{placeLink(1), placeLink(1), placeLink(2), placeLink(3)},
		places: map[string]RawListing{
			placeLink(1): {Name: "Glow Medspa"},
			placeLink(2): {Name: "   "},
			placeLink(3): {Name: "Radiance"},
		},
	}

	got, _ := New(b, 0).Discover(context.Background(), "medspas", "Austin", 10)
	if len(got) != 2 || got[0].Name != "Glow Medspa" || got[1].Name != "Radiance" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if len(b.visited) != 3 {
		t.Errorf("expected duplicate link to be visited once, visited %v", b.visited)
	}
	if got[0].Location != "Austin" {
		t.Errorf("expected location tag, got %q", got[0].Location)
	}
}

func TestDiscoverSkipsFailedPlaces(t *testing.T) {
	b := manyPlaces(3)
	b.placeErr = map[string]error{placeLink(1): errors.New("timeout")}

	got, err := New(b, 0).Discover(context.Background(), "medspas", "Austin", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(got))
	}
}

func TestDiscoverSearchFailureIsEmpty(t *testing.T) {
	b := &stubBrowser{searchErr: errors.New("chrome not found")}
	got, err := New(b, 0).Discover(context.Background(), "medspas", "Austin", 10)
	if err == nil {
		t.Error("expected diagnostic error")
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestNormalize(t *testing.T) {
	raw := RawListing{
		Name:        " Glow  Medspa ",
		RatingText:  "4.8 stars",
		ReviewsText: "(1,234)",
		Hours:       "Open ⋅ Closes 7 PM",
		Info: []InfoItem{
			{ID: "address", Text: "123 Main St, Austin, TX"},
			{ID: "phone:tel:+15125550100", Text: "(512) 555-0100"},
			{ID: "authority", Href: "https://www.google.com/url?q=https://glowmedspa.com/&sa=U"},
		},
	}
	c, ok := Normalize(raw, placeLink(1), "Austin, TX")
	if !ok {
		t.Fatal("expected listing to be accepted")
	}
	if c.Name != "Glow Medspa" {
		t.Errorf("unexpected name %q", c.Name)
	}
	if c.Rating == nil || *c.Rating != 4.8 {
		t.Errorf("unexpected rating %v", c.Rating)
	}
	if c.ReviewsCount == nil || *c.ReviewsCount != 1234 {
		t.Errorf("unexpected reviews %v", c.ReviewsCount)
	}
	if c.Address != "123 Main St, Austin, TX" || c.Phone != "(512) 555-0100" {
		t.Errorf("unexpected contact fields %+v", c)
	}
	if c.Website != "https://glowmedspa.com/" {
		t.Errorf("unexpected website %q", c.Website)
	}
	if c.ListingURL != placeLink(1) {
		t.Errorf("unexpected listing url %q", c.ListingURL)
	}
}

func TestNormalizeUnparseableNumbersAreAbsent(t *testing.T) {
	c, ok := Normalize(RawListing{Name: "X", RatingText: "no rating", ReviewsText: "reviews"}, "", "")
	if !ok {
		t.Fatal("expected listing to be accepted")
	}
	if c.Rating != nil {
		t.Errorf("expected nil rating, got %v", *c.Rating)
	}
	if c.ReviewsCount != nil {
		t.Errorf("expected nil reviews, got %v", *c.ReviewsCount)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"4.5 stars", f(4.5)},
		{"Rated 5", f(5)},
		{".", nil},
		{"12.0", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := ParseRating(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("ParseRating(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeWebsiteURL(t *testing.T) {
	tests := map[string]string{
		"https://glow.com":                           "https://glow.com",
		"glow.com":                                   "https://glow.com",
		"https://www.google.com/url?q=http://a.com/": "http://a.com/",
		"https://www.google.com/maps/place/x":        "",
		"mailto:hi@glow.com":                         "",
		"":                                           "",
	}
	for in, want := range tests {
		if got := NormalizeWebsiteURL(in); got != want {
			t.Errorf("NormalizeWebsiteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func f(v float64) *float64 { return &v }
