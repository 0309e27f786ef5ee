package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/llm"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
)

// RelevanceThreshold is the weight a facet must exceed to explain a match
const RelevanceThreshold = 0.1

// NoSignificantDriver is reported when every facet weight is at or below the threshold
const NoSignificantDriver = "no significant driver"

// Explanation names the facet that best accounts for a match
type Explanation struct {
	Query        string      `json:"query"`
	Driver       facet.Facet `json:"driver,omitempty"`
	Weight       float64     `json:"weight"`
	Distance     float64     `json:"distance"`
	Contribution float64     `json:"contribution"`
	Significant  bool        `json:"significant"`
	Summary      string      `json:"summary"`
}

// Explain picks the relevant facet with the lowest weight*distance. Ties go to
// the facet that comes first in embedding order.
func Explain(query string, d facet.Distances, w facet.Weights) Explanation {
	out := Explanation{Query: query, Summary: NoSignificantDriver}

	for _, f := range facet.All {
		weight := w.Get(f)
		if weight <= RelevanceThreshold {
			continue
		}
		dist := d.Resolved(f)
		contribution := weight * dist
		if out.Significant && contribution >= out.Contribution {
			continue
		}
		out.Driver = f
		out.Weight = weight
		out.Distance = dist
		out.Contribution = contribution
		out.Significant = true
	}

	if out.Significant {
		out.Summary = fmt.Sprintf("%s (weight %.2f, distance %.2f)", out.Driver, out.Weight, out.Distance)
	}
	return out
}

// ErrShowNotRanked is returned when the show has no distances for the query
var ErrShowNotRanked = errors.New("show could not be scored for this query")

// ShowSource loads a show's texts and title
type ShowSource interface {
	GetShow(id int64) (*catalog.Show, error)
}

// ExplainRequest asks why one show matches a query
type ExplainRequest struct {
	Query     string
	ShowID    int64
	UserID    *uuid.UUID
	Alpha     *float64
	Narrative bool
}

// MatchReport is the explain endpoint payload
type MatchReport struct {
	ShowID           int64           `json:"show_id"`
	Title            string          `json:"title"`
	Explanation      Explanation     `json:"explanation"`
	Distances        facet.Distances `json:"distances"`
	WeightedDistance float64         `json:"weighted_distance"`
	QueryText        string          `json:"query_text,omitempty"`
	DocumentText     string          `json:"document_text,omitempty"`
	Narrative        string          `json:"narrative,omitempty"`
	Metadata         Metadata        `json:"metadata"`
}

// Explainer scores one show against a query the same way Search does and
// reports its driver
type Explainer struct {
	engine   *Engine
	shows    ShowSource
	narrator llm.Narrator
	logger   *logger.Logger
}

// NewExplainer creates an explainer; narrator may be nil
func NewExplainer(engine *Engine, shows ShowSource, narrator llm.Narrator, log *logger.Logger) *Explainer {
	return &Explainer{
		engine:   engine,
		shows:    shows,
		narrator: narrator,
		logger:   log.WithComponent("match-explainer"),
	}
}

// ExplainMatch scores req.ShowID and explains it. A failed narrative is
// logged and left out of the report.
func (x *Explainer) ExplainMatch(ctx context.Context, req ExplainRequest) (*MatchReport, error) {
	show, err := x.shows.GetShow(req.ShowID)
	if err != nil {
		return nil, err
	}

	p, ok, err := x.engine.prepare(ctx, Request{Query: req.Query, UserID: req.UserID, Alpha: req.Alpha})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: query could not be embedded", ErrShowNotRanked)
	}

	distances, err := x.engine.store.DistancesForItems(ctx, []int64{show.ID}, p.bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to score show %d: %w", show.ID, err)
	}
	d, ok := distances[show.ID]
	if !ok {
		return nil, ErrShowNotRanked
	}

	explanation := Explain(p.raw, d, p.weights)
	report := &MatchReport{
		ShowID:           show.ID,
		Title:            show.Title,
		Explanation:      explanation,
		Distances:        d,
		WeightedDistance: facet.WeightedDistance(p.weights, d),
		Metadata:         p.metadata([]int64{show.ID}),
	}
	if !explanation.Significant {
		return report, nil
	}

	report.QueryText = p.texts[explanation.Driver]
	report.DocumentText = show.Text(explanation.Driver)

	if req.Narrative && x.narrator != nil {
		narrative, err := x.narrator.Narrate(ctx, llm.Match{
			Title:        show.Title,
			Driver:       explanation.Driver.String(),
			Weight:       explanation.Weight,
			Distance:     explanation.Distance,
			QueryText:    report.QueryText,
			DocumentText: report.DocumentText,
		})
		if err != nil {
			x.logger.Warn(fmt.Sprintf("Narrative failed for show %d: %v", show.ID, err))
		} else {
			report.Narrative = narrative
		}
	}

	return report, nil
}
