package business

// Candidate is a business returned by listing discovery.
type Candidate struct {
	Name         string   `json:"name"`
	Location     string   `json:"location"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviews_count"`
	Hours        string   `json:"hours"`

	// ListingURL identifies the listing within a discovery run.
	ListingURL string `json:"-"`
}

// PriceMention is a dollar amount found on a page with its surrounding text.
type PriceMention struct {
	Price   string `json:"price"`
	Context string `json:"context"`
}

// Image is an image reference found on a page.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"has_alt"`
}

// Link is an internal link found on a page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Catalog holds the services, prices and team mentions mined from a page.
type Catalog struct {
	Services    []string       `json:"services"`
	Prices      []PriceMention `json:"prices"`
	TeamMembers []string       `json:"team_members"`
}

// FeedSummary describes the RSS/Atom feed a site advertises.
type FeedSummary struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	ItemCount  int    `json:"item_count"`
	LatestPost string `json:"latest_post,omitempty"`
}

// WebsiteProfile is everything extracted from a single page fetch.
type WebsiteProfile struct {
	URL string `json:"url"`

	Catalog

	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	H1Tags          []string `json:"h1_tags"`
	Images          []Image  `json:"images"`
	Links           []Link   `json:"links"`
	HasViewport     bool     `json:"has_viewport"`
	CTAButtons      []string `json:"cta_buttons"`
	TextLength      int      `json:"text_length"`

	InstagramURL string       `json:"instagram_url"`
	Language     string       `json:"language"`
	Excerpt      string       `json:"excerpt"`
	Feed         *FeedSummary `json:"feed"`

	// Grading is the heading-scoped catalog used for website grading.
	Grading Catalog `json:"-"`
}

// EmptyCatalog returns a catalog with non-nil empty collections.
func EmptyCatalog() Catalog {
	return Catalog{
		Services:    []string{},
		Prices:      []PriceMention{},
		TeamMembers: []string{},
	}
}

// EmptyProfile returns the canonical empty profile for url.
func EmptyProfile(url string) WebsiteProfile {
	return WebsiteProfile{
		URL:        url,
		Catalog:    EmptyCatalog(),
		H1Tags:     []string{},
		Images:     []Image{},
		Links:      []Link{},
		CTAButtons: []string{},
		Grading:    EmptyCatalog(),
	}
}

// SocialProfile is a resolved Instagram account.
type SocialProfile struct {
	Username       string  `json:"username"`
	Followers      int     `json:"followers"`
	Following      int     `json:"following"`
	Posts          int     `json:"posts"`
	EngagementRate float64 `json:"engagement_rate"`
	Bio            string  `json:"bio"`
	IsVerified     bool    `json:"is_verified"`
	IsBusiness     bool    `json:"is_business"`
}

// Revenue tiers and pricing strategies the assessor may report.
const (
	Unknown = "Unknown"

	TierLow    = "Low"
	TierMedium = "Medium"
	TierHigh   = "High"

	PricingBudget  = "Budget"
	PricingMidTier = "Mid-tier"
	PricingPremium = "Premium"
	PricingLuxury  = "Luxury"
)

// Assessment is the external scorer's commercial analysis of one business.
// Nil fields were not produced by the scorer.
type Assessment struct {
	RevenueStreams        []string `json:"revenue_streams"`
	EstimatedRevenueTier  *string  `json:"estimated_revenue_tier"`
	PricingStrategy       *string  `json:"pricing_strategy"`
	ServiceQualityScore   *float64 `json:"service_quality_score"`
	CompetitiveAssessment *string  `json:"competitive_assessment"`
	NicheSpecificInsights *string  `json:"niche_specific_insights"`
}

// EmptyAssessment returns the canonical empty assessment.
func EmptyAssessment() Assessment {
	return Assessment{RevenueStreams: []string{}}
}

// IsEmpty reports whether the scorer produced nothing.
func (a Assessment) IsEmpty() bool {
	return len(a.RevenueStreams) == 0 && a.EstimatedRevenueTier == nil &&
		a.PricingStrategy == nil && a.ServiceQualityScore == nil &&
		a.CompetitiveAssessment == nil && a.NicheSpecificInsights == nil
}

// WebsiteGrade is the external scorer's design and SEO grade for a site.
type WebsiteGrade struct {
	TotalScore      int      `json:"total_score"`
	DesignScore     int      `json:"design_score"`
	SEOScore        int      `json:"seo_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// EmptyGrade returns the zero grade with empty lists.
func EmptyGrade() WebsiteGrade {
	return WebsiteGrade{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
}

// Failure records a stage that degraded while building a record.
type Failure struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Record is the merged result for one discovered business.
type Record struct {
	ID    *int64 `json:"id"`
	RunID string `json:"run_id"`

	Candidate

	Niche string `json:"niche"`

	Services     []string       `json:"services"`
	Prices       []PriceMention `json:"prices"`
	TeamMembers  []string       `json:"team_members"`
	WebsiteGrade WebsiteGrade   `json:"website_grade"`
	Instagram    *SocialProfile `json:"instagram"`
	Analysis     *Assessment    `json:"analysis"`

	Failures []Failure `json:"failures,omitempty"`
}

// NewRecord starts a record from a candidate with every enrichment empty.
func NewRecord(c Candidate, niche, location, runID string) Record {
	if c.Location == "" {
		c.Location = location
	}
	return Record{
		RunID:        runID,
		Candidate:    c,
		Niche:        niche,
		Services:     []string{},
		Prices:       []PriceMention{},
		TeamMembers:  []string{},
		WebsiteGrade: EmptyGrade(),
	}
}
