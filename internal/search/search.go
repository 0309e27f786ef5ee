// Package search runs the two-stage facet retrieval: a cheap nearest-neighbour
// pass on the main facet followed by a weighted rerank over every facet.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/audit"
	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/metrics"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/dustin/showfinder/internal/query"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
)

// ErrEmptyQuery is returned for blank requests
var ErrEmptyQuery = errors.New("query is empty")

const (
	defaultCandidateK = 200
	defaultTopK       = 20
	defaultMaxTopK    = 100
)

// Degradation reasons reported in Metadata.Degraded
const (
	DegradedInterpreter     = "interpreter"
	DegradedEmbedding       = "embedding"
	DegradedPersonalization = "personalization"
	DegradedStore           = "store"
)

// Interpreter turns a raw request into an Interpretation
type Interpreter interface {
	Parse(ctx context.Context, raw string, availableGenres []string) (query.Interpretation, error)
}

// Embedder returns one unit vector per text, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]facet.Vector, error)
}

// GenreSource lists the genre names the interpreter may use
type GenreSource interface {
	ListGenres() ([]string, error)
}

// Personalizer produces a user's taste vector on the main facet. ok is false
// when the user has too little usable history.
type Personalizer interface {
	UserVector(ctx context.Context, userID uuid.UUID) (facet.Vector, bool, error)
}

// AuditSink receives one event per completed search. It must not block.
type AuditSink interface {
	Record(event audit.Event)
}

// Request is one search call
type Request struct {
	Query      string
	TopK       int
	UserID     *uuid.UUID
	Alpha      *float64
	UserVector facet.Vector
}

// ScoredResult is one ranked show
type ScoredResult struct {
	ItemID           int64           `json:"item_id"`
	Distances        facet.Distances `json:"distances"`
	WeightedDistance float64         `json:"weighted_distance"`
}

// Metadata describes how a search was run
type Metadata struct {
	Structured   query.Interpretation `json:"structured"`
	Weights      facet.Weights        `json:"weights"`
	Alpha        float64              `json:"alpha"`
	Candidates   []int64              `json:"candidates"`
	Personalized bool                 `json:"personalized"`
	FacetTexts   query.Texts          `json:"facet_texts"`
	Degraded     []string             `json:"degraded,omitempty"`
}

// Response carries ranked results and metadata
type Response struct {
	Results  []ScoredResult `json:"results"`
	Metadata Metadata       `json:"metadata"`
}

// Dependencies are the collaborators an Engine calls
type Dependencies struct {
	Interpreter  Interpreter
	Embedder     Embedder
	Store        catalog.FacetStore
	Genres       GenreSource
	Personalizer Personalizer
	Audit        AuditSink
}

// Engine executes searches. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	candidateK  int
	defaultTopK int
	maxTopK     int
	alpha       float64

	interpreter  Interpreter
	embedder     Embedder
	store        catalog.FacetStore
	genres       GenreSource
	personalizer Personalizer
	audit        AuditSink
	logger       *logger.Logger
	now          func() time.Time
}

// NewEngine creates an engine with validation and defaults
func NewEngine(cfg *config.SearchConfig, deps Dependencies, log *logger.Logger) (*Engine, error) {
	if deps.Embedder == nil {
		return nil, errors.New("search engine requires an embedder")
	}
	if deps.Store == nil {
		return nil, errors.New("search engine requires a facet store")
	}

	e := &Engine{
		candidateK:   defaultCandidateK,
		defaultTopK:  defaultTopK,
		maxTopK:      defaultMaxTopK,
		alpha:        personalization.DefaultAlpha,
		interpreter:  deps.Interpreter,
		embedder:     deps.Embedder,
		store:        deps.Store,
		genres:       deps.Genres,
		personalizer: deps.Personalizer,
		audit:        deps.Audit,
		logger:       log.WithComponent("search-engine"),
		now:          time.Now,
	}

	if cfg == nil {
		return e, nil
	}

	var err error
	if e.candidateK, err = positiveInt(cfg.CandidateK, defaultCandidateK, "candidate k"); err != nil {
		return nil, err
	}
	if e.defaultTopK, err = positiveInt(cfg.DefaultTopK, defaultTopK, "default top k"); err != nil {
		return nil, err
	}
	if e.maxTopK, err = positiveInt(cfg.MaxTopK, defaultMaxTopK, "max top k"); err != nil {
		return nil, err
	}
	if e.defaultTopK > e.maxTopK {
		e.defaultTopK = e.maxTopK
	}
	if cfg.Alpha != "" {
		a, err := strconv.ParseFloat(cfg.Alpha, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid search alpha '%s': %v", cfg.Alpha, err)
		}
		e.alpha = personalization.ClampAlpha(a)
	}

	return e, nil
}

func positiveInt(raw string, fallback int, name string) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s '%s'", name, raw)
	}
	return n, nil
}

// plan is everything derived from a request before the store is touched
type plan struct {
	raw          string
	topK         int
	alpha        float64
	structured   query.Interpretation
	weights      facet.Weights
	texts        query.Texts
	bundle       facet.Bundle
	personalized bool
	degraded     []string
}

func (p *plan) degrade(reason string) {
	metrics.UpstreamDegraded.WithLabelValues(reason).Inc()
	p.degraded = append(p.degraded, reason)
}

func (p *plan) metadata(candidates []int64) Metadata {
	if candidates == nil {
		candidates = []int64{}
	}
	return Metadata{
		Structured:   p.structured,
		Weights:      p.weights,
		Alpha:        p.alpha,
		Candidates:   candidates,
		Personalized: p.personalized,
		FacetTexts:   p.texts,
		Degraded:     p.degraded,
	}
}

// Search runs both stages. Upstream failures degrade the response instead of
// failing it; only a blank query is rejected.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := e.now()

	p, ok, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.observe(start, "degraded", 0)
		return &Response{Results: []ScoredResult{}, Metadata: p.metadata(nil)}, nil
	}

	neighbors, err := e.store.NearestByFacet(ctx, facet.Main, p.bundle[facet.Main], catalog.HasFacet(facet.Main), e.candidateK)
	if err != nil {
		e.logger.Error("Stage one lookup failed: " + err.Error())
		p.degrade(DegradedStore)
		e.observe(start, "error", 0)
		return &Response{Results: []ScoredResult{}, Metadata: p.metadata(nil)}, nil
	}

	candidates := make([]int64, len(neighbors))
	for i, n := range neighbors {
		candidates[i] = n.ShowID
	}

	if len(candidates) == 0 {
		e.observe(start, "empty", 0)
		return &Response{Results: []ScoredResult{}, Metadata: p.metadata(candidates)}, nil
	}

	distances, err := e.store.DistancesForItems(ctx, candidates, p.bundle)
	if err != nil {
		e.logger.Error("Stage two rerank failed: " + err.Error())
		p.degrade(DegradedStore)
		e.observe(start, "error", len(candidates))
		return &Response{Results: []ScoredResult{}, Metadata: p.metadata(candidates)}, nil
	}

	results := Rank(candidates, distances, p.weights, p.topK)

	e.record(req, p, candidates, results)
	outcome := "ok"
	if len(p.degraded) > 0 {
		outcome = "degraded"
	}
	e.observe(start, outcome, len(candidates))

	return &Response{Results: results, Metadata: p.metadata(candidates)}, nil
}

// prepare interprets, embeds and personalises the request. ok is false when no
// query vectors could be produced.
func (e *Engine) prepare(ctx context.Context, req Request) (*plan, bool, error) {
	raw := strings.TrimSpace(req.Query)
	if raw == "" {
		return nil, false, ErrEmptyQuery
	}

	p := &plan{
		raw:   raw,
		topK:  e.clampTopK(req.TopK),
		alpha: e.alpha,
	}
	if req.Alpha != nil {
		p.alpha = personalization.ClampAlpha(*req.Alpha)
	}

	p.structured = e.interpret(ctx, raw, p)
	p.weights = p.structured.Weights.Resolve()
	p.texts = query.FacetTexts(raw, p.structured)

	vectors, err := e.embedder.Embed(ctx, p.texts.Ordered())
	if err != nil || len(vectors) != facet.Count {
		if err == nil {
			err = fmt.Errorf("expected %d vectors, got %d", facet.Count, len(vectors))
		}
		e.logger.Error("Embedding failed: " + err.Error())
		p.degrade(DegradedEmbedding)
		return p, false, nil
	}

	p.bundle = make(facet.Bundle, facet.Count)
	for i, f := range facet.All {
		p.bundle[f] = vectors[i]
	}
	if !p.bundle.Has(facet.Main) {
		e.logger.Warn("Main facet embedded to a zero vector for query: " + raw)
		p.degrade(DegradedEmbedding)
		return p, false, nil
	}

	if u := e.userVector(ctx, req, p); u != nil {
		blended := personalization.Blend(p.bundle[facet.Main], u, p.alpha)
		p.bundle[facet.Main] = blended
		p.personalized = len(u) == len(vectors[0])
	}

	return p, true, nil
}

func (e *Engine) interpret(ctx context.Context, raw string, p *plan) query.Interpretation {
	if e.interpreter == nil {
		return query.Interpretation{}
	}

	var genres []string
	if e.genres != nil {
		g, err := e.genres.ListGenres()
		if err != nil {
			e.logger.Warn("Failed to load genres for interpreter: " + err.Error())
		} else {
			genres = g
		}
	}

	structured, err := e.interpreter.Parse(ctx, raw, genres)
	if err != nil {
		e.logger.Warn("Interpreter failed, using raw query: " + err.Error())
		p.degrade(DegradedInterpreter)
		return query.Interpretation{}
	}
	return structured
}

// userVector prefers a caller-supplied vector and otherwise asks the
// personalizer when the request names a user
func (e *Engine) userVector(ctx context.Context, req Request, p *plan) facet.Vector {
	if len(req.UserVector) > 0 {
		return req.UserVector
	}
	if req.UserID == nil || e.personalizer == nil {
		return nil
	}

	u, ok, err := e.personalizer.UserVector(ctx, *req.UserID)
	if err != nil {
		e.logger.Warn("Failed to build user vector for " + req.UserID.String() + ": " + err.Error())
		p.degrade(DegradedPersonalization)
		return nil
	}
	if !ok {
		return nil
	}
	return u
}

func (e *Engine) clampTopK(k int) int {
	if k <= 0 {
		return e.defaultTopK
	}
	if k > e.maxTopK {
		return e.maxTopK
	}
	return k
}

func (e *Engine) record(req Request, p *plan, candidates []int64, results []ScoredResult) {
	if e.audit == nil {
		return
	}

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ItemID
	}

	e.audit.Record(audit.Event{
		UserID:       req.UserID,
		Query:        p.raw,
		TopK:         p.topK,
		ResultIDs:    ids,
		Structured:   p.structured,
		Alpha:        p.alpha,
		Candidates:   candidates,
		WeightsUsed:  p.weights,
		Personalized: p.personalized,
		Timestamp:    e.now().UTC(),
	})
}

func (e *Engine) observe(start time.Time, outcome string, candidates int) {
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.WithLabelValues(outcome).Observe(e.now().Sub(start).Seconds())
	metrics.SearchCandidates.Observe(float64(candidates))
}
