// Package facet holds the closed set of embedded show facets and the vector,
// distance and weight arithmetic shared by search and personalization.
package facet

import "strings"

// Facet names one independently embedded aspect of a show
type Facet string

const (
	Main     Facet = "main"
	Plot     Facet = "plot"
	Meta     Facet = "meta"
	Tone     Facet = "tone"
	Tags     Facet = "tags"
	Genre    Facet = "genre"
	Cast     Facet = "cast"
	Language Facet = "language"
)

// All lists every facet in embedding order
var All = [Count]Facet{Main, Plot, Meta, Tone, Tags, Genre, Cast, Language}

// Count is the size of the facet set
const Count = 8

// Parse resolves a facet name, case-insensitively
func Parse(name string) (Facet, bool) {
	f := Facet(strings.ToLower(strings.TrimSpace(name)))
	return f, f.Valid()
}

// Valid reports whether f is one of the known facets
func (f Facet) Valid() bool {
	return f.index() >= 0
}

func (f Facet) String() string {
	return string(f)
}

func (f Facet) index() int {
	for i, known := range All {
		if known == f {
			return i
		}
	}
	return -1
}
