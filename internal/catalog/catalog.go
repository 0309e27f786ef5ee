package catalog

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/showfinder/internal/facet"
)

// ErrNotFound is returned when a show does not exist
var ErrNotFound = errors.New("show not found")

// VectorDimensions is the width of every vector column. The gorm tags on Show
// spell it out and must be changed together with it.
const VectorDimensions = 1536

// CheckDimensions rejects an embedder whose output width differs from the
// vector columns, which pgvector would refuse on every query.
func CheckDimensions(dim int) error {
	if dim != VectorDimensions {
		return fmt.Errorf("embedding dimensions %d do not match catalog vector columns of %d", dim, VectorDimensions)
	}
	return nil
}

// Show is a catalog entry with one optional embedding per facet. Vectors are
// written unit-normalized by the offline embedding job and never modified here.
type Show struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	Title    string `json:"title" gorm:"not null;size:500;index"`
	ShowType string `json:"show_type" gorm:"size:20"`
	Year     int    `json:"year"`
	Overview string `json:"overview" gorm:"type:text"`

	EmbeddingText     string `json:"-" gorm:"type:text"`
	PlotEmbeddingText string `json:"-" gorm:"type:text"`
	MetaEmbeddingText string `json:"-" gorm:"type:text"`
	ToneEmbeddingText string `json:"-" gorm:"type:text"`

	Embedding         Embedding `json:"-" gorm:"column:embedding;type:vector(1536)"`
	PlotEmbedding     Embedding `json:"-" gorm:"column:plot_embedding;type:vector(1536)"`
	MetaEmbedding     Embedding `json:"-" gorm:"column:meta_embedding;type:vector(1536)"`
	ToneEmbedding     Embedding `json:"-" gorm:"column:tone_embedding;type:vector(1536)"`
	TagsEmbedding     Embedding `json:"-" gorm:"column:tags_embedding;type:vector(1536)"`
	GenreEmbedding    Embedding `json:"-" gorm:"column:genre_embedding;type:vector(1536)"`
	CastEmbedding     Embedding `json:"-" gorm:"column:cast_embedding;type:vector(1536)"`
	LanguageEmbedding Embedding `json:"-" gorm:"column:language_embedding;type:vector(1536)"`

	Genres    []Genre   `json:"genres,omitempty" gorm:"many2many:show_genres"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Genre is a catalog genre; its names feed the query interpreter
type Genre struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null;size:100"`
}

// TableName returns the table name for GORM
func (Show) TableName() string {
	return "shows"
}

// TableName returns the table name for GORM
func (Genre) TableName() string {
	return "genres"
}

// Column returns the vector column backing f
func Column(f facet.Facet) string {
	if f == facet.Main {
		return "embedding"
	}
	return string(f) + "_embedding"
}

// Vector returns the stored vector for f, nil when absent
func (s *Show) Vector(f facet.Facet) facet.Vector {
	var e Embedding
	switch f {
	case facet.Main:
		e = s.Embedding
	case facet.Plot:
		e = s.PlotEmbedding
	case facet.Meta:
		e = s.MetaEmbedding
	case facet.Tone:
		e = s.ToneEmbedding
	case facet.Tags:
		e = s.TagsEmbedding
	case facet.Genre:
		e = s.GenreEmbedding
	case facet.Cast:
		e = s.CastEmbedding
	case facet.Language:
		e = s.LanguageEmbedding
	}
	if len(e) == 0 {
		return nil
	}
	return facet.Vector(e)
}

// Text returns the source text that was embedded for f. Facets without their
// own text column share the main embedding text.
func (s *Show) Text(f facet.Facet) string {
	switch f {
	case facet.Plot:
		if s.PlotEmbeddingText != "" {
			return s.PlotEmbeddingText
		}
	case facet.Meta:
		if s.MetaEmbeddingText != "" {
			return s.MetaEmbeddingText
		}
	case facet.Tone:
		if s.ToneEmbeddingText != "" {
			return s.ToneEmbeddingText
		}
	}
	return s.EmbeddingText
}

// Neighbor is one nearest-neighbour hit
type Neighbor struct {
	ShowID   int64
	Distance float64
}

// Filter restricts nearest-neighbour candidates
type Filter struct {
	// RequireFacet, when set, admits only shows that carry that facet vector
	RequireFacet facet.Facet
	ExcludeIDs   []int64
}

// HasFacet is the stage-one filter: shows that carry a vector for f
func HasFacet(f facet.Facet) Filter {
	return Filter{RequireFacet: f}
}

// Excludes reports whether id is filtered out by ExcludeIDs
func (f Filter) Excludes(id int64) bool {
	for _, x := range f.ExcludeIDs {
		if x == id {
			return true
		}
	}
	return false
}

// FacetStore answers nearest-neighbour and per-row distance queries over facets
type FacetStore interface {
	// NearestByFacet returns up to k shows ordered by ascending distance to v on
	// facet f, ties broken by ascending show ID.
	NearestByFacet(ctx context.Context, f facet.Facet, v facet.Vector, filter Filter, k int) ([]Neighbor, error)
	// DistancesForItems returns every facet distance for every requested show;
	// missing vectors on either side resolve to facet.MaxDistance.
	DistancesForItems(ctx context.Context, ids []int64, bundle facet.Bundle) (map[int64]facet.Distances, error)
}

// Repository reads catalog rows
type Repository interface {
	FindByID(id int64) (*Show, error)
	FindByIDs(ids []int64) ([]*Show, error)
	FindMainVectors(ids []int64) (map[int64]facet.Vector, error)
	GenreNames() ([]string, error)
}

// Embedding is a vector column encoded in pgvector text form, "[1,2,3]"
type Embedding []float64

// Value implements driver.Valuer; empty embeddings are stored as NULL
func (e Embedding) Value() (driver.Value, error) {
	if len(e) == 0 {
		return nil, nil
	}
	return FormatVector(facet.Vector(e)), nil
}

// Scan implements sql.Scanner
func (e *Embedding) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		return e.parse(string(v))
	case string:
		return e.parse(v)
	default:
		return fmt.Errorf("unsupported vector source type %T", src)
	}
}

func (e *Embedding) parse(s string) error {
	vec, err := ParseVector(s)
	if err != nil {
		return err
	}
	*e = Embedding(vec)
	return nil
}

// FormatVector renders v in pgvector text form
func FormatVector(v facet.Vector) string {
	if len(v) == 0 {
		return "[]"
	}

	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseVector reads pgvector text form
func ParseVector(s string) (facet.Vector, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return facet.Vector{}, nil
	}

	parts := strings.Split(body, ",")
	out := make(facet.Vector, len(parts))
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed vector component %q: %w", p, err)
		}
		out[i] = x
	}
	return out, nil
}
