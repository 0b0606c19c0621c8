package pipeline

import (
	"context"

	"github.com/TobiSchelling/bizscout/internal/assess"
	"github.com/TobiSchelling/bizscout/internal/browser"
	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/config"
	"github.com/TobiSchelling/bizscout/internal/database"
	"github.com/TobiSchelling/bizscout/internal/discover"
	"github.com/TobiSchelling/bizscout/internal/llm"
	"github.com/TobiSchelling/bizscout/internal/niches"
	"github.com/TobiSchelling/bizscout/internal/social"
	"github.com/TobiSchelling/bizscout/internal/throttle"
	"github.com/TobiSchelling/bizscout/internal/website"
)

// Discoverer finds candidate businesses for a search term and location.
type Discoverer interface {
	Discover(ctx context.Context, searchTerm, location string, limit int) ([]business.Candidate, error)
}

// ProfileExtractor builds a website profile.
type ProfileExtractor interface {
	Extract(ctx context.Context, url string) (business.WebsiteProfile, error)
}

// Grader grades a website profile.
type Grader interface {
	Grade(ctx context.Context, profile business.WebsiteProfile) (business.WebsiteGrade, error)
}

// SocialResolver finds a business's Instagram account. A nil profile with
// a nil error means no account was found.
type SocialResolver interface {
	Resolve(ctx context.Context, name, discoveredURL string) (*business.SocialProfile, error)
}

// Assessor produces the commercial assessment of a record.
type Assessor interface {
	Assess(ctx context.Context, rec business.Record) (business.Assessment, error)
}

// Store persists one record in its own transaction.
type Store interface {
	SaveRecord(ctx context.Context, rec business.Record) (int64, error)
}

// Stages is the set of collaborators used for one batch. A nil Store skips
// persistence.
type Stages struct {
	Discoverer Discoverer
	Extractor  ProfileExtractor
	Grader     Grader
	Social     SocialResolver
	Assessor   Assessor
	Store      Store
}

// StageFactory builds the stages for one batch. release is called when the
// batch finishes.
type StageFactory func(ctx context.Context) (stages Stages, release func(), err error)

// FixedStages returns a factory that always hands out stages.
func FixedStages(stages Stages) StageFactory {
	return func(context.Context) (Stages, func(), error) {
		return stages, func() {}, nil
	}
}

// NewStageFactory wires the production stages from cfg. The LLM clients,
// throttle and Instagram source are shared across batches; each batch gets
// its own Chrome session.
func NewStageFactory(cfg *config.Config, db *database.DB, catalog *niches.Catalog) StageFactory {
	provider := llm.CreateProvider(llm.Settings{
		Provider:  cfg.Scoring.Provider,
		Model:     cfg.Scoring.Model,
		BaseURL:   cfg.Scoring.BaseURL,
		OllamaURL: cfg.Scoring.OllamaURL,
		APIKeyEnv: cfg.Scoring.APIKeyEnv,
		Timeout:   cfg.Scoring.Timeout,
	})
	limiter := throttle.New(cfg.Pipeline.ThrottleConcurrency, cfg.Pipeline.ThrottleInterval)

	resolver := social.NewResolver(
		social.NewInstagramSource(cfg.Social.BaseURL, cfg.Social.AppID, cfg.Social.Timeout),
		limiter,
	)
	assessor := assess.NewBusinessAssessor(provider, limiter, catalog)
	grader := assess.NewWebsiteGrader(provider, limiter)

	var store Store
	if db != nil {
		store = db
	}

	return func(ctx context.Context) (Stages, func(), error) {
		session := browser.NewSession(browser.Options{
			Headless: cfg.Discovery.Headless,
			ExecPath: cfg.Discovery.ChromePath,
		})

		chrome := discover.NewChromeBrowser(session, cfg.Discovery.Timeout, cfg.Discovery.ScrollDelay)

		static := website.NewStaticFetcher(cfg.Website.Timeout).WithMaxBytes(cfg.Website.MaxBodyBytes)
		var fetcher website.Fetcher = static
		if cfg.Website.Renderer == config.RendererChrome {
			fetcher = website.NewRenderFetcher(session, cfg.Website.Timeout)
		}
		opts := website.Options{DetectLanguage: cfg.Website.DetectLanguage}
		if cfg.Website.DNSPreflight {
			opts.Hosts = website.NewDNSChecker(cfg.Website.Resolvers...)
		}
		if cfg.Website.ProbeFeed {
			opts.FeedClient = static.Client()
		}

		stages := Stages{
			Discoverer: discover.New(chrome, cfg.Discovery.DetailDelay),
			Extractor:  website.NewExtractor(fetcher, opts),
			Grader:     grader,
			Social:     resolver,
			Assessor:   assessor,
			Store:      store,
		}
		return stages, session.Close, nil
	}
}
