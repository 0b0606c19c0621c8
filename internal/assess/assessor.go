package assess

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/llm"
	"github.com/TobiSchelling/bizscout/internal/niches"
	"github.com/TobiSchelling/bizscout/internal/throttle"
)

const (
	assessSystem = "You are an expert business analyst specialising in revenue modelling. " +
		"Always reply with a valid JSON object and nothing else."
	assessTemperature = 0.3
	assessMaxTokens   = 1024
	maxTeamChars      = 200
)

const assessPrompt = `Analyse this %s business and return ONLY a JSON object with these exact keys:

Business: %s
Location: %s
Rating: %s (%s reviews)
Website: %s
Services: %s
Prices: %s
Team: %s
Social: %s
Typical services for this niche: %s

Required JSON structure:
{
  "revenue_streams": ["stream1", "stream2", "stream3"],
  "estimated_revenue_tier": "Low|Medium|High",
  "pricing_strategy": "Budget|Mid-tier|Premium|Luxury",
  "service_quality_score": 7.5,
  "competitive_assessment": "Brief 1-2 sentence assessment",
  "niche_specific_insights": "Brief 1-2 sentence niche insight"
}`

var (
	revenueTiers      = []string{business.TierLow, business.TierMedium, business.TierHigh}
	pricingStrategies = []string{business.PricingBudget, business.PricingMidTier, business.PricingPremium, business.PricingLuxury}
)

// BusinessAssessor produces the commercial assessment of a record.
type BusinessAssessor struct {
	client
	catalog *niches.Catalog
}

// NewBusinessAssessor creates an assessor. provider and limiter may be
// nil; catalog defaults to the embedded niche catalog.
func NewBusinessAssessor(provider llm.Provider, limiter *throttle.Limiter, catalog *niches.Catalog) *BusinessAssessor {
	if catalog == nil {
		catalog = niches.Default()
	}
	return &BusinessAssessor{client: client{provider: provider, limiter: limiter}, catalog: catalog}
}

// Assess scores rec. Every failure returns the empty assessment with an
// error describing why.
func (a *BusinessAssessor) Assess(ctx context.Context, rec business.Record) (business.Assessment, error) {
	log := zap.L().With(zap.String("business", rec.Name), zap.String("stage", "assess"))

	if !a.configured() {
		log.Debug("scoring provider not configured; skipping assessment")
		return business.EmptyAssessment(), ErrNotConfigured
	}

	niche, _ := a.catalog.Lookup(rec.Niche)
	data, err := a.complete(ctx, llm.Request{
		System:      assessSystem,
		Prompt:      AssessmentPrompt(rec, niche),
		MaxTokens:   assessMaxTokens,
		Temperature: assessTemperature,
	})
	if err != nil {
		log.Warn("assessment failed", zap.Error(err))
		return business.EmptyAssessment(), err
	}

	result := parseAssessment(data)
	log.Info("assessment received",
		zap.Stringp("tier", result.EstimatedRevenueTier),
		zap.Stringp("pricing", result.PricingStrategy))
	return result, nil
}

func parseAssessment(m map[string]any) business.Assessment {
	tier := normalizeLabel(getString(m, "estimated_revenue_tier", ""), revenueTiers, business.Unknown)
	pricing := normalizeLabel(getString(m, "pricing_strategy", ""), pricingStrategies, business.Unknown)
	score := clamp(getFloat(m, "service_quality_score", 0), 0, 10)

	a := business.Assessment{
		RevenueStreams:       getStringList(m, "revenue_streams"),
		EstimatedRevenueTier: &tier,
		PricingStrategy:      &pricing,
		ServiceQualityScore:  &score,
	}
	if s := getString(m, "competitive_assessment", ""); s != "" {
		a.CompetitiveAssessment = &s
	}
	if s := getString(m, "niche_specific_insights", ""); s != "" {
		a.NicheSpecificInsights = &s
	}
	return a
}

// AssessmentPrompt renders the fixed-shape prompt for rec. Missing fields
// are spelled out as placeholders.
func AssessmentPrompt(rec business.Record, niche niches.Niche) string {
	const unknown = "unknown"

	rating, reviews := "N/A", "N/A"
	if rec.Rating != nil {
		rating = strconv.FormatFloat(*rec.Rating, 'f', -1, 64)
	}
	if rec.ReviewsCount != nil {
		reviews = strconv.Itoa(*rec.ReviewsCount)
	}

	prices := make([]string, 0, len(rec.Prices))
	for _, p := range rec.Prices {
		prices = append(prices, p.Price)
	}

	team := strings.Join(rec.TeamMembers, ", ")
	if r := []rune(team); len(r) > maxTeamChars {
		team = string(r[:maxTeamChars])
	}

	social := "No Instagram found"
	if ig := rec.Instagram; ig != nil && ig.Username != "" {
		social = fmt.Sprintf("Instagram: @%s | %s followers | %.1f%% engagement",
			ig.Username, thousands(ig.Followers), ig.EngagementRate)
	}

	label := niche.Label
	if label == "" {
		label = rec.Niche
	}

	return fmt.Sprintf(assessPrompt,
		orUnknown(label, unknown),
		orUnknown(rec.Name, unknown),
		orUnknown(rec.Location, unknown),
		rating, reviews,
		orUnknown(rec.Website, unknown),
		orUnknown(strings.Join(rec.Services, ", "), unknown),
		orUnknown(strings.Join(prices, ", "), unknown),
		orUnknown(team, unknown),
		social,
		orUnknown(strings.Join(niche.CommonServices, ", "), unknown),
	)
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
