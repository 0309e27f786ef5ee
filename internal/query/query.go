// Package query describes the structured reading of a free-text request and
// turns it into one text per facet for embedding.
package query

import (
	"strconv"
	"strings"

	"github.com/dustin/showfinder/internal/facet"
)

// Intents recognised by the interpreter
const (
	IntentSeries = "find_tv_series"
	IntentMovie  = "find_movie"
	IntentAny    = "find_any"
)

// Interpretation is the interpreter's structured reading of a request.
// The zero value is the fail-soft fallback: no weights, raw text everywhere.
type Interpretation struct {
	Intent             string        `json:"intent,omitempty"`
	MustGenres         []string      `json:"must_genres,omitempty"`
	ShouldGenres       []string      `json:"should_genres,omitempty"`
	ExcludeGenres      []string      `json:"exclude_genres,omitempty"`
	MustBeSeries       bool          `json:"must_be_series,omitempty"`
	MustBeMovie        bool          `json:"must_be_movie,omitempty"`
	MinYear            *int          `json:"min_year,omitempty"`
	MaxYear            *int          `json:"max_year,omitempty"`
	Tone               []string      `json:"tone,omitempty"`
	Keywords           []string      `json:"keywords,omitempty"`
	Cast               []string      `json:"cast,omitempty"`
	Language           *string       `json:"language,omitempty"`
	EmbeddingQueryText string        `json:"embedding_query_text,omitempty"`
	Weights            facet.Weights `json:"weights,omitempty"`
}

// blank is sent for facets that should carry no preference
const blank = " "

// Texts holds the string embedded for each facet
type Texts map[facet.Facet]string

// Ordered returns the texts in facet embedding order; blank entries become a
// single space.
func (t Texts) Ordered() []string {
	out := make([]string, 0, facet.Count)
	for _, f := range facet.All {
		out = append(out, Sanitize(t[f]))
	}
	return out
}

// Sanitize replaces empty or whitespace-only text with a single space
func Sanitize(s string) string {
	if strings.TrimSpace(s) == "" {
		return blank
	}
	return s
}

// FacetTexts builds the per-facet query strings from the raw request and its
// interpretation. Cast and language fall back to a blank; every other facet
// falls back to the raw request.
func FacetTexts(raw string, in Interpretation) Texts {
	texts := Texts{
		facet.Main: firstNonEmpty(in.EmbeddingQueryText, raw),
		facet.Plot: raw,
		facet.Meta: orRaw(metaTokens(in), raw),
		facet.Tone: orRaw(in.Tone, raw),
		facet.Tags: orRaw(in.Keywords, raw),
	}

	genres := make([]string, 0, len(in.MustGenres)+len(in.ShouldGenres))
	genres = append(genres, cleanList(in.MustGenres)...)
	genres = append(genres, cleanList(in.ShouldGenres)...)
	texts[facet.Genre] = orRaw(genres, raw)

	texts[facet.Cast] = orRaw(in.Cast, blank)

	language := blank
	if in.Language != nil && strings.TrimSpace(*in.Language) != "" {
		language = strings.TrimSpace(*in.Language)
	}
	texts[facet.Language] = language

	return texts
}

func metaTokens(in Interpretation) []string {
	var parts []string
	if in.MinYear != nil && *in.MinYear != 0 {
		parts = append(parts, strconv.Itoa(*in.MinYear))
	}
	switch in.Intent {
	case IntentMovie:
		parts = append(parts, "movie")
	case IntentSeries:
		parts = append(parts, "series")
	}
	return parts
}

func orRaw(tokens []string, fallback string) string {
	cleaned := cleanList(tokens)
	if len(cleaned) == 0 {
		return fallback
	}
	return strings.Join(cleaned, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
