// Package openai implements generator.Generator on top of an
// OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/generator"
	"github.com/sakif/excuse-me/internal/model"
)

var _ generator.Generator = (*Generator)(nil)

// ErrEmptyOutput is the cause reported when the provider answers with no text.
var ErrEmptyOutput = errors.New("openai: empty completion")

// Generator calls the chat completion endpoint once per request.
type Generator struct {
	client *goopenai.Client
	config Config
	logger *slog.Logger
}

// New creates a Generator. It does not contact the provider.
func New(cfg Config, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client: goopenai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: logger,
	}, nil
}

// Generate renders the prompt and returns the first completion choice.
//
// Every failure is returned as apperror.Generation with the provider error as
// its cause, so callers can log the detail without showing it to the user.
func (g *Generator) Generate(ctx context.Context, req model.ExcuseRequest) (string, error) {
	prompt, err := generator.Prompt(req)
	if err != nil {
		return "", apperror.Generation(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, goopenai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []goopenai.ChatCompletionMessage{{
			Role:    goopenai.ChatMessageRoleUser,
			Content: prompt,
		}},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		g.logger.Warn("chat completion failed",
			slog.String("model", g.config.Model),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return "", apperror.Generation(fmt.Errorf("openai: chat completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", apperror.Generation(ErrEmptyOutput)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", apperror.Generation(ErrEmptyOutput)
	}

	g.logger.Debug("chat completion succeeded",
		slog.String("model", g.config.Model),
		slog.Duration("duration", time.Since(start)),
		slog.Int("totalTokens", resp.Usage.TotalTokens),
	)
	return text, nil
}
