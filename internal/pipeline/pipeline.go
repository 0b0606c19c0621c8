// Package pipeline runs a discovery batch: it finds businesses, enriches
// each one stage by stage and persists the merged records.
package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/config"
	"github.com/TobiSchelling/bizscout/internal/database"
	"github.com/TobiSchelling/bizscout/internal/niches"
)

// Request bounds.
const (
	MinResults     = 1
	MaxResults     = 50
	DefaultResults = 10
)

// Request asks for one discovery batch.
type Request struct {
	Niche      string `json:"niche"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
}

// Validate trims the request and rejects it before any work is done.
func (r *Request) Validate() error {
	r.Niche = strings.TrimSpace(r.Niche)
	r.Location = strings.TrimSpace(r.Location)
	switch {
	case r.Niche == "":
		return &ValidationError{Message: "niche is required"}
	case r.Location == "":
		return &ValidationError{Message: "location is required"}
	case r.MaxResults < MinResults || r.MaxResults > MaxResults:
		return &ValidationError{Message: "max_results must be between 1 and 50"}
	}
	return nil
}

// BatchResult is the response for one batch. Businesses keep discovery
// order.
type BatchResult struct {
	Niche                 string             `json:"niche"`
	Location              string             `json:"location"`
	ResultsCount          int                `json:"results_count"`
	ProcessingTimeSeconds float64            `json:"processing_time_seconds"`
	RunID                 string             `json:"run_id"`
	Businesses            []business.Record  `json:"businesses"`
	Failures              []business.Failure `json:"failures,omitempty"`
}

// Options tunes a Pipeline.
type Options struct {
	// Workers is how many candidates are enriched at once.
	Workers int
	// StageTimeout bounds each enrichment stage. Zero means no bound.
	StageTimeout time.Duration
	// DiscoveryTimeout bounds the discovery stage. Zero means no bound.
	DiscoveryTimeout time.Duration
}

// Pipeline orchestrates discovery batches.
type Pipeline struct {
	factory StageFactory
	catalog *niches.Catalog
	opts    Options
}

// New creates a pipeline with the production stages.
func New(cfg *config.Config, db *database.DB, catalog *niches.Catalog) *Pipeline {
	if catalog == nil {
		catalog = niches.Default()
	}
	return NewWithStages(NewStageFactory(cfg, db, catalog), catalog, Options{
		Workers:          cfg.Pipeline.Workers,
		StageTimeout:     cfg.Pipeline.StageTimeout,
		DiscoveryTimeout: cfg.Pipeline.DiscoveryTimeout,
	})
}

// NewWithStages creates a pipeline around factory.
func NewWithStages(factory StageFactory, catalog *niches.Catalog, opts Options) *Pipeline {
	if catalog == nil {
		catalog = niches.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{factory: factory, catalog: catalog, opts: opts}
}

// Catalog returns the niche catalog the pipeline searches with.
func (p *Pipeline) Catalog() *niches.Catalog {
	return p.catalog
}

// Run validates req and processes one batch. Only validation and stage
// setup errors are returned; stage failures are recorded on the records.
func (p *Pipeline) Run(ctx context.Context, req Request) (*BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	stages, release, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &BatchResult{
		Niche:      req.Niche,
		Location:   req.Location,
		RunID:      runID,
		Businesses: []business.Record{},
	}

	searchTerm := p.catalog.SearchTerm(req.Niche)
	log.Info("starting batch",
		zap.String("niche", req.Niche),
		zap.String("search_term", searchTerm),
		zap.String("location", req.Location),
		zap.Int("max_results", req.MaxResults))

	discovery := stageOpts{
		name:    "discover",
		kind:    KindDiscovery,
		timeout: p.opts.DiscoveryTimeout,
		subject: searchTerm + " in " + req.Location,
	}
	found := runStage(ctx, discovery, []business.Candidate{},
		func(ctx context.Context) ([]business.Candidate, error) {
			return stages.Discoverer.Discover(ctx, searchTerm, req.Location, req.MaxResults)
		})
	if !found.OK() {
		result.Failures = append(result.Failures, found.Err.Failure())
	}

	candidates := found.Value
	if len(candidates) > req.MaxResults {
		candidates = candidates[:req.MaxResults]
	}

	records := make([]business.Record, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			records[i] = p.enrich(gctx, stages, business.NewRecord(c, req.Niche, req.Location, runID))
			return nil
		})
	}
	g.Wait()

	result.Businesses = records
	result.ResultsCount = len(records)
	result.ProcessingTimeSeconds = math.Round(time.Since(start).Seconds()*100) / 100

	log.Info("batch complete",
		zap.Int("results", result.ResultsCount),
		zap.Float64("seconds", result.ProcessingTimeSeconds))
	return result, nil
}

// enrich takes one candidate through every stage. It never fails; stage
// failures leave the stage's empty value and an entry in rec.Failures.
func (p *Pipeline) enrich(ctx context.Context, stages Stages, rec business.Record) business.Record {
	step := func(name string, kind FailureKind) stageOpts {
		return stageOpts{name: name, kind: kind, timeout: p.opts.StageTimeout, subject: rec.Name}
	}
	note := func(err *StageError) {
		if err != nil {
			rec.Failures = append(rec.Failures, err.Failure())
		}
	}

	profile := business.EmptyProfile(rec.Website)
	if rec.Website != "" {
		fetched := runStage(ctx, step("website", KindExtraction), profile,
			func(ctx context.Context) (business.WebsiteProfile, error) {
				return stages.Extractor.Extract(ctx, rec.Website)
			})
		note(fetched.Err)
		profile = fetched.Value

		rec.Services = profile.Services
		rec.Prices = profile.Prices
		rec.TeamMembers = profile.TeamMembers

		// Grading an empty profile would score the placeholders, so a
		// failed fetch skips it and the record keeps EmptyGrade.
		if fetched.OK() {
			graded := runStage(ctx, step("grade", KindScoring), business.EmptyGrade(),
				func(ctx context.Context) (business.WebsiteGrade, error) {
					return stages.Grader.Grade(ctx, profile)
				})
			note(graded.Err)
			rec.WebsiteGrade = graded.Value
		}
	}

	social := runStage(ctx, step("social", KindResolution), (*business.SocialProfile)(nil),
		func(ctx context.Context) (*business.SocialProfile, error) {
			return stages.Social.Resolve(ctx, rec.Name, profile.InstagramURL)
		})
	note(social.Err)
	rec.Instagram = social.Value

	assessed := runStage(ctx, step("assess", KindScoring), business.EmptyAssessment(),
		func(ctx context.Context) (business.Assessment, error) {
			return stages.Assessor.Assess(ctx, rec)
		})
	note(assessed.Err)
	if !assessed.Value.IsEmpty() {
		a := assessed.Value
		rec.Analysis = &a
	}

	if stages.Store != nil {
		saved := runStage(ctx, step("persist", KindPersistence), int64(0),
			func(ctx context.Context) (int64, error) {
				return stages.Store.SaveRecord(ctx, rec)
			})
		note(saved.Err)
		if saved.OK() {
			id := saved.Value
			rec.ID = &id
		}
	}

	return normalizeRecord(rec)
}

// normalizeRecord keeps collections non-nil so they encode as [].
func normalizeRecord(rec business.Record) business.Record {
	if rec.Services == nil {
		rec.Services = []string{}
	}
	if rec.Prices == nil {
		rec.Prices = []business.PriceMention{}
	}
	if rec.TeamMembers == nil {
		rec.TeamMembers = []string{}
	}
	g := &rec.WebsiteGrade
	if g.Strengths == nil {
		g.Strengths = []string{}
	}
	if g.Weaknesses == nil {
		g.Weaknesses = []string{}
	}
	if g.Recommendations == nil {
		g.Recommendations = []string{}
	}
	return rec
}
