// Package llm reads free-text requests with a chat model and narrates why a
// show matched.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/dustin/showfinder/config"
)

// ErrNotConfigured is returned when no chat model provider is set
var ErrNotConfigured = errors.New("chat model provider not configured")

type ChatModelMeta struct {
	Provider string
	Model    string
}

// NewChatModelFromConfig builds the chat model named in config
func NewChatModelFromConfig(ctx context.Context, cfg *config.LLMConfig) (model.BaseChatModel, ChatModelMeta, error) {
	if cfg == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil llm config")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	modelName := strings.TrimSpace(cfg.Model)

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, ErrNotConfigured

	case "openai":
		apiKey := strings.TrimSpace(cfg.APIKey)
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		if apiKey == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey")
		}

		timeout := 30 * time.Second
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, ChatModelMeta{}, fmt.Errorf("invalid llm timeout '%s': %v", cfg.Timeout, err)
			}
			timeout = d
		}

		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  apiKey,
			Model:   modelName,
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Timeout: timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil

	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}
