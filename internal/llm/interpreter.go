package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/dustin/showfinder/internal/query"
	"github.com/dustin/showfinder/pkg/breaker"
	"github.com/dustin/showfinder/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

const interpreterPrompt = `You are a query parser for a movie/series recommender.

You receive a short English request and output only one JSON object:

{
  "intent": "find_tv_series" | "find_movie" | "find_any",
  "must_genres": [string],
  "should_genres": [string],
  "exclude_genres": [string],
  "must_be_series": boolean,
  "must_be_movie": boolean,
  "min_year": number | null,
  "max_year": number | null,
  "tone": [string],
  "keywords": [string],
  "cast": [string],
  "language": string | null,
  "embedding_query_text": string,
  "weights": {
    "plot": number,
    "meta": number,
    "tone": number,
    "tags": number,
    "genre": number,
    "cast": number,
    "language": number
  }
}

Constraints:
- Only use genres listed inside <available_genres> for must_genres, should_genres and exclude_genres.
- Explicit series request: intent "find_tv_series" and must_be_series true.
- Explicit movie request: intent "find_movie" and must_be_movie true.
- Otherwise intent "find_any" with both flags false.
- Detect tone words (dark, gritty, comedic) into "tone".
- Put non-genre topical keywords into "keywords".
- Put named actors or directors into "cast".
- Extract year constraints if given, else null.
- embedding_query_text: short natural-language summary including format and tone if relevant.
- weights: a float between 0.0 and 1.0 per key. Use 0.0 or 0.1 for anything not mentioned.
  - cast: 0.8-1.0 only if specific people are named, else 0.0.
  - language: 0.8-1.0 only if a language or country is explicit.
  - genre: 0.7-1.0 if genres are named.
  - plot: 0.6-1.0 if story elements are described.
  - tone: 0.6-1.0 if mood adjectives are used.
  - meta: 0.7-1.0 if decade, year or awards are central.
  - tags: 0.7-1.0 for niche keywords not covered by genre.

Output rules:
- Only valid JSON, no text outside it.
- No genres outside <available_genres>.
`

// Interpreter parses a raw request into a structured Interpretation
type Interpreter interface {
	Parse(ctx context.Context, raw string, availableGenres []string) (query.Interpretation, error)
}

type chatInterpreter struct {
	chat   model.BaseChatModel
	cb     *gobreaker.CircuitBreaker[*schema.Message]
	logger *logger.Logger
}

// NewInterpreter creates an interpreter backed by a chat model
func NewInterpreter(chat model.BaseChatModel, settings breaker.Settings, log *logger.Logger) Interpreter {
	return &chatInterpreter{
		chat:   chat,
		cb:     breaker.New[*schema.Message]("query-interpreter", settings, log),
		logger: log.WithComponent("query-interpreter"),
	}
}

func (i *chatInterpreter) Parse(ctx context.Context, raw string, availableGenres []string) (query.Interpretation, error) {
	if strings.TrimSpace(raw) == "" {
		return query.Interpretation{}, errors.New("empty query")
	}

	system := interpreterPrompt + "<available_genres>" + strings.Join(availableGenres, ",") + "</available_genres>"

	resp, err := i.cb.Execute(func() (*schema.Message, error) {
		return i.chat.Generate(ctx, []*schema.Message{
			{Role: schema.System, Content: system},
			{Role: schema.User, Content: raw},
		}, model.WithTemperature(0))
	})
	if err != nil {
		return query.Interpretation{}, fmt.Errorf("interpreter call failed: %w", err)
	}
	if resp == nil {
		return query.Interpretation{}, errors.New("interpreter returned no message")
	}

	var out query.Interpretation
	if err := parseJSONFromContent(resp.Content, &out); err != nil {
		i.logger.Warn("Unparseable interpreter reply: " + err.Error())
		return query.Interpretation{}, fmt.Errorf("invalid interpreter reply: %w", err)
	}

	out.MustGenres = keepKnown(out.MustGenres, availableGenres)
	out.ShouldGenres = keepKnown(out.ShouldGenres, availableGenres)
	out.ExcludeGenres = keepKnown(out.ExcludeGenres, availableGenres)
	return out, nil
}

// Static never interprets; used when no chat model is configured
type Static struct{}

func (Static) Parse(context.Context, string, []string) (query.Interpretation, error) {
	return query.Interpretation{}, nil
}

func parseJSONFromContent(content string, out interface{}) error {
	raw := extractJSONObject(content)
	if raw == "" {
		return errors.New("json not found")
	}
	return json.Unmarshal([]byte(raw), out)
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// keepKnown drops genres the catalog does not carry. An empty catalog list
// keeps everything.
func keepKnown(genres, available []string) []string {
	if len(available) == 0 || len(genres) == 0 {
		return genres
	}
	known := make(map[string]string, len(available))
	for _, g := range available {
		known[strings.ToLower(strings.TrimSpace(g))] = g
	}
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if name, ok := known[strings.ToLower(strings.TrimSpace(g))]; ok {
			out = append(out, name)
		}
	}
	return out
}
