// Package embedding turns facet query texts into unit vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/query"
	"github.com/dustin/showfinder/pkg/breaker"
	"github.com/dustin/showfinder/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCountMismatch is returned when the provider answers with a different
// number of vectors than texts sent
var ErrCountMismatch = errors.New("embedding count mismatch")

const defaultDimensions = 1536

// Meta describes the configured provider
type Meta struct {
	Provider string
	Model    string
	Dim      int
}

// NewEmbedderFromConfig builds the raw provider named in config
func NewEmbedderFromConfig(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, Meta, error) {
	if cfg == nil {
		return nil, Meta{}, fmt.Errorf("nil embedding config")
	}

	dim := defaultDimensions
	if cfg.Dimensions != "" {
		n, err := strconv.Atoi(cfg.Dimensions)
		if err != nil || n <= 0 {
			return nil, Meta{}, fmt.Errorf("invalid embedding dimensions '%s'", cfg.Dimensions)
		}
		dim = n
	}

	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("invalid embedding timeout '%s': %v", cfg.Timeout, err)
		}
		timeout = d
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := strings.TrimSpace(cfg.Model)

	switch provider {
	case "", "hash":
		return NewHashEmbedder(dim), Meta{Provider: "hash", Model: "hash", Dim: dim}, nil
	case "service":
		url := strings.TrimSpace(cfg.ServiceURL)
		if url == "" {
			return nil, Meta{}, fmt.Errorf("embedding service url is empty")
		}
		return NewClient(url, timeout), Meta{Provider: "service", Model: model, Dim: dim}, nil
	case "openai":
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" || model == "" {
			return nil, Meta{}, fmt.Errorf("openai embedding missing apiKey/model")
		}

		localDim := dim
		em, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			APIKey:     apiKey,
			Model:      model,
			BaseURL:    strings.TrimSpace(cfg.BaseURL),
			Timeout:    timeout,
			Dimensions: &localDim,
		})
		if err != nil {
			return nil, Meta{}, err
		}
		return em, Meta{Provider: "openai", Model: model, Dim: dim}, nil
	default:
		return nil, Meta{}, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

// Guarded wraps a provider with input sanitising, a circuit breaker and
// output normalisation
type Guarded struct {
	inner  embedding.Embedder
	cb     *gobreaker.CircuitBreaker[[][]float64]
	logger *logger.Logger
}

// NewGuarded wraps inner behind a breaker built from settings
func NewGuarded(inner embedding.Embedder, settings breaker.Settings, log *logger.Logger) *Guarded {
	return &Guarded{
		inner:  inner,
		cb:     breaker.New[[][]float64]("embedding", settings, log),
		logger: log.WithComponent("embedding-service"),
	}
}

// Embed returns one unit vector per text, in order. A zero vector from the
// provider comes back as nil.
func (g *Guarded) Embed(ctx context.Context, texts []string) ([]facet.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = query.Sanitize(t)
	}

	raw, err := g.cb.Execute(func() ([][]float64, error) {
		out, err := g.inner.EmbedStrings(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if len(out) != len(inputs) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrCountMismatch, len(inputs), len(out))
		}
		return out, nil
	})
	if err != nil {
		if breaker.IsOpen(err) {
			g.logger.Warn("Embedding breaker open, skipping call")
		}
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	vectors := make([]facet.Vector, len(raw))
	for i, r := range raw {
		if v, ok := facet.Normalize(facet.Vector(r)); ok {
			vectors[i] = v
		}
	}
	return vectors, nil
}
