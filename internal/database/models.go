package database

import "github.com/TobiSchelling/bizscout/internal/business"

// StoredBusiness is a businesses row with its optional children.
type StoredBusiness struct {
	ID           int64    `json:"id"`
	RunID        *string  `json:"run_id"`
	Name         string   `json:"name"`
	Niche        *string  `json:"niche"`
	Location     *string  `json:"location"`
	Website      *string  `json:"website"`
	Phone        *string  `json:"phone"`
	Address      *string  `json:"address"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviews_count"`
	Hours        *string  `json:"hours"`
	ScrapedAt    *string  `json:"scraped_at"`

	Instagram    *StoredInstagram       `json:"instagram"`
	Analysis     *StoredAnalysis        `json:"analysis"`
	WebsiteGrade *business.WebsiteGrade `json:"website_grade,omitempty"`
}

// StoredInstagram is an instagram_data row.
type StoredInstagram struct {
	Username       *string  `json:"username"`
	Followers      *int     `json:"followers"`
	Following      *int     `json:"following"`
	Posts          *int     `json:"posts"`
	EngagementRate *float64 `json:"engagement_rate"`
	Bio            *string  `json:"bio"`
	IsVerified     bool     `json:"is_verified"`
	IsBusiness     bool     `json:"is_business"`
}

// StoredAnalysis is an analyses row with revenue streams decoded.
type StoredAnalysis struct {
	RevenueStreams        []string `json:"revenue_streams"`
	EstimatedRevenueTier  *string  `json:"estimated_revenue_tier"`
	PricingStrategy       *string  `json:"pricing_strategy"`
	ServiceQualityScore   *float64 `json:"service_quality_score"`
	CompetitiveAssessment *string  `json:"competitive_assessment"`
	NicheSpecificInsights *string  `json:"niche_specific_insights"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	Businesses    int
	WithWebsite   int
	WithInstagram int
	WithAnalysis  int
	Graded        int
	Runs          int
	Niches        int
}
