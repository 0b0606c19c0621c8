package assess

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/llm"
	"github.com/TobiSchelling/bizscout/internal/throttle"
)

const (
	gradeSystem = "You are an expert web designer and SEO consultant. " +
		"Grade websites objectively based on design quality and SEO best practices. " +
		"Always reply with valid JSON only."
	gradeTemperature = 0.2
	gradeMaxTokens   = 800
)

const gradeRubric = `GRADING RUBRIC:

DESIGN & UX (50 points):
- Visual appeal & professionalism (15 pts)
- Mobile responsiveness (10 pts) - check viewport tag, CTA visibility
- Page load optimization (10 pts) - image count, size indicators
- Clear navigation & structure (10 pts) - links, sections
- Call-to-action visibility (5 pts) - contact buttons, booking

SEO & DISCOVERABILITY (50 points):
- Meta tags quality (10 pts) - title and description present and descriptive
- Header structure (10 pts) - proper H1 usage
- Image optimization (10 pts) - alt text percentage
- SSL certificate (5 pts) - HTTPS
- Content quality (10 pts) - text length, keyword usage, service descriptions
- Internal linking (5 pts) - navigation structure

Return ONLY this JSON structure:
{
  "total_score": 75,
  "design_score": 38,
  "seo_score": 37,
  "strengths": ["strength1", "strength2", "strength3"],
  "weaknesses": ["weakness1", "weakness2", "weakness3"],
  "recommendations": ["recommendation1", "recommendation2", "recommendation3"]
}

Be objective and realistic. Most websites score 60-80. Only exceptional sites score 90+.`

// WebsiteGrader grades a site's design and SEO out of 100.
type WebsiteGrader struct {
	client
}

// NewWebsiteGrader creates a grader. provider and limiter may be nil.
func NewWebsiteGrader(provider llm.Provider, limiter *throttle.Limiter) *WebsiteGrader {
	return &WebsiteGrader{client: client{provider: provider, limiter: limiter}}
}

// Grade scores profile. Every failure returns the zero grade with an
// error describing why.
func (g *WebsiteGrader) Grade(ctx context.Context, profile business.WebsiteProfile) (business.WebsiteGrade, error) {
	log := zap.L().With(zap.String("url", profile.URL), zap.String("stage", "grade"))

	if profile.URL == "" {
		return business.EmptyGrade(), nil
	}
	if !g.configured() {
		log.Debug("scoring provider not configured; skipping grade")
		return business.EmptyGrade(), ErrNotConfigured
	}

	data, err := g.complete(ctx, llm.Request{
		System:      gradeSystem,
		Prompt:      GradingPrompt(profile),
		MaxTokens:   gradeMaxTokens,
		Temperature: gradeTemperature,
	})
	if err != nil {
		log.Warn("website grading failed", zap.Error(err))
		return business.EmptyGrade(), err
	}

	grade := parseGrade(data)
	log.Info("website graded", zap.Int("total", grade.TotalScore))
	return grade, nil
}

func parseGrade(m map[string]any) business.WebsiteGrade {
	return business.WebsiteGrade{
		TotalScore:      clamp(getInt(m, "total_score", 0), 0, 100),
		DesignScore:     clamp(getInt(m, "design_score", 0), 0, 50),
		SEOScore:        clamp(getInt(m, "seo_score", 0), 0, 50),
		Strengths:       getStringList(m, "strengths"),
		Weaknesses:      getStringList(m, "weaknesses"),
		Recommendations: getStringList(m, "recommendations"),
	}
}

// GradingPrompt renders the grading prompt for profile.
func GradingPrompt(p business.WebsiteProfile) string {
	var b strings.Builder

	withAlt := 0
	for _, img := range p.Images {
		if img.HasAlt {
			withAlt++
		}
	}
	altPct := withAlt * 100 / max(len(p.Images), 1)

	fmt.Fprintf(&b, "Grade this website out of 100 points based on Design (50 points) and SEO (50 points).\n\n")
	fmt.Fprintf(&b, "Website: %s\n\n", orUnknown(p.URL, "unknown"))
	b.WriteString("TECHNICAL DATA:\n")
	fmt.Fprintf(&b, "- SSL Certificate: %s\n", yesNo(strings.HasPrefix(strings.ToLower(p.URL), "https://")))
	fmt.Fprintf(&b, "- Meta Title: %s\n", orUnknown(p.MetaTitle, "Missing"))
	fmt.Fprintf(&b, "- Meta Description: %s\n", orUnknown(p.MetaDescription, "Missing"))
	fmt.Fprintf(&b, "- H1 Tags: %d found - %s\n", len(p.H1Tags), strings.Join(firstN(p.H1Tags, 3), ", "))
	fmt.Fprintf(&b, "- Images: %d total, %d with alt text (%d%%)\n", len(p.Images), withAlt, altPct)
	fmt.Fprintf(&b, "- Internal Links: %d\n", len(p.Links))
	fmt.Fprintf(&b, "- Mobile Viewport Tag: %s\n", yesNo(p.HasViewport))
	fmt.Fprintf(&b, "- Call-to-Action Buttons: %d found - %s\n", len(p.CTAButtons), strings.Join(firstN(p.CTAButtons, 3), ", "))
	fmt.Fprintf(&b, "- Content Language: %s\n", orUnknown(p.Language, "unknown"))
	feed := "unknown"
	if f := p.Feed; f != nil {
		feed = fmt.Sprintf("%d posts, latest %s", f.ItemCount, orUnknown(f.LatestPost, "unknown"))
	}
	fmt.Fprintf(&b, "- Blog/News Feed: %s\n", feed)

	b.WriteString("\nCONTENT PREVIEW:\n")
	fmt.Fprintf(&b, "Summary: %s\n", orUnknown(p.Excerpt, "unknown"))
	fmt.Fprintf(&b, "Services: %s\n", orUnknown(strings.Join(firstN(p.Grading.Services, 5), ", "), "None found"))
	fmt.Fprintf(&b, "Team: %s\n", orUnknown(strings.Join(firstN(p.Grading.TeamMembers, 5), ", "), "None found"))
	fmt.Fprintf(&b, "Text Length: %d characters\n\n", p.TextLength)

	b.WriteString(gradeRubric)
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func firstN(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
