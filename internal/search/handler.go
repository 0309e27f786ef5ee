package search

import (
	"context"
	"errors"
	"net/http"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

// Searcher runs a search
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// MatchExplainer explains one result
type MatchExplainer interface {
	ExplainMatch(ctx context.Context, req ExplainRequest) (*MatchReport, error)
}

// ShowLister hydrates result IDs
type ShowLister interface {
	GetShows(ids []int64) ([]*catalog.Show, error)
}

// Handler handles HTTP requests for search
type Handler struct {
	searcher  Searcher
	explainer MatchExplainer
	shows     ShowLister
}

// NewHandler creates a new search handler; shows may be nil
func NewHandler(searcher Searcher, explainer MatchExplainer, shows ShowLister) *Handler {
	return &Handler{
		searcher:  searcher,
		explainer: explainer,
		shows:     shows,
	}
}

// SearchRequest is the POST /search body
type SearchRequest struct {
	Query string   `json:"query" binding:"required"`
	TopK  int      `json:"top_k"`
	Alpha *float64 `json:"alpha"`
}

// ExplainMatchRequest is the POST /search/explain body
type ExplainMatchRequest struct {
	Query     string   `json:"query" binding:"required"`
	ShowID    int64    `json:"show_id" binding:"required"`
	Alpha     *float64 `json:"alpha"`
	Narrative bool     `json:"narrative"`
}

// ResultView is a scored result with its show attached
type ResultView struct {
	ScoredResult
	Show *catalog.Show `json:"show,omitempty"`
}

// Search handles a free-text search; a bearer token personalises it
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must not be negative"})
		return
	}

	userID, err := utils.GetOptionalUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	resp, err := h.searcher.Search(c.Request.Context(), Request{
		Query:  req.Query,
		TopK:   req.TopK,
		UserID: userID,
		Alpha:  req.Alpha,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query must not be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":  h.hydrate(resp.Results),
		"metadata": resp.Metadata,
		"count":    len(resp.Results),
	})
}

// Explain reports which facet drove a show's match
func (h *Handler) Explain(c *gin.Context) {
	var req ExplainMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetOptionalUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	report, err := h.explainer.ExplainMatch(c.Request.Context(), ExplainRequest{
		Query:     req.Query,
		ShowID:    req.ShowID,
		UserID:    userID,
		Alpha:     req.Alpha,
		Narrative: req.Narrative,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyQuery):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query must not be empty"})
		case errors.Is(err, catalog.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
		case errors.Is(err, ErrShowNotRanked):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to explain match"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// hydrate attaches shows to results; lookup failures leave results bare
func (h *Handler) hydrate(results []ScoredResult) []ResultView {
	views := make([]ResultView, len(results))
	for i, r := range results {
		views[i] = ResultView{ScoredResult: r}
	}
	if h.shows == nil || len(results) == 0 {
		return views
	}

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ItemID
	}
	shows, err := h.shows.GetShows(ids)
	if err != nil {
		return views
	}

	byID := make(map[int64]*catalog.Show, len(shows))
	for _, s := range shows {
		byID[s.ID] = s
	}
	for i := range views {
		views[i].Show = byID[views[i].ItemID]
	}
	return views
}

// RegisterRoutes registers search routes. optionalAuth rejects bad tokens but
// lets anonymous requests through.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	search := router.Group("/search")
	search.Use(optionalAuth)
	{
		search.POST("", h.Search)
		search.POST("/explain", h.Explain)
	}
}
