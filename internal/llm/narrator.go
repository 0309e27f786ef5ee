package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/dustin/showfinder/pkg/breaker"
	"github.com/dustin/showfinder/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Match is what the narrator is told about a single result
type Match struct {
	Title        string
	Driver       string
	Weight       float64
	Distance     float64
	QueryText    string
	DocumentText string
}

// Narrator explains in prose why a show matched
type Narrator interface {
	Narrate(ctx context.Context, m Match) (string, error)
}

type chatNarrator struct {
	chat   model.BaseChatModel
	cb     *gobreaker.CircuitBreaker[*schema.Message]
	logger *logger.Logger
}

// NewNarrator creates a narrator backed by a chat model
func NewNarrator(chat model.BaseChatModel, settings breaker.Settings, log *logger.Logger) Narrator {
	return &chatNarrator{
		chat:   chat,
		cb:     breaker.New[*schema.Message]("match-narrator", settings, log),
		logger: log.WithComponent("match-narrator"),
	}
}

func (n *chatNarrator) Narrate(ctx context.Context, m Match) (string, error) {
	resp, err := n.cb.Execute(func() (*schema.Message, error) {
		return n.chat.Generate(ctx, []*schema.Message{
			{Role: schema.System, Content: "You are a helpful search analyst."},
			{Role: schema.User, Content: narrationPrompt(m)},
		})
	})
	if err != nil {
		return "", fmt.Errorf("narrator call failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("narrator returned no content")
	}
	return strings.TrimSpace(resp.Content), nil
}

func narrationPrompt(m Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Why did %q match the query?\n\n", m.Title)
	fmt.Fprintf(&b, "Primary driver: %s (weight %.2f, distance %.2f)\n\n", strings.ToUpper(m.Driver), m.Weight, m.Distance)
	fmt.Fprintf(&b, "Query text:\n%q\n\n", m.QueryText)
	fmt.Fprintf(&b, "Document text:\n%q\n\n", m.DocumentText)
	b.WriteString("Name the phrases in both texts that make them similar and say whether the match comes from ")
	b.WriteString("true semantic alignment, an ambiguous query or misleading document text. ")
	b.WriteString("Answer in one short paragraph using **bold** for the driving phrases, then add the headers ")
	b.WriteString("\"### Conclusion\" (Correct Match or Incorrect Match) and \"### Reason\".")
	return b.String()
}
