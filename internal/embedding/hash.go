package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

// HashEmbedder maps text to a deterministic bag-of-words vector. Texts that
// share words land close together, which is enough for local runs and tests.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([][]float64, len(texts))
	for i, text := range texts {
		result[i] = h.vector(text)
	}
	return result, nil
}

func (h *HashEmbedder) vector(text string) []float64 {
	vec := make([]float64, h.Dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	for _, tok := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.Dim))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	return vec
}

var _ embedding.Embedder = (*HashEmbedder)(nil)
