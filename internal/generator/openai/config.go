package openai

import (
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config holds the settings for the OpenAI-compatible chat completion client.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string
	// BaseURL overrides the provider endpoint. Empty means api.openai.com.
	BaseURL string
	// Model is the chat model to call.
	Model string
	// Timeout bounds a single generation call.
	Timeout time.Duration
	// MaxTokens caps the completion length.
	MaxTokens int
	// Temperature is passed through to the provider.
	Temperature float32
}

// DefaultConfig provides defaults for short excuse generation.
func DefaultConfig() Config {
	return Config{
		Model:       goopenai.GPT4oMini,
		Timeout:     30 * time.Second,
		MaxTokens:   300,
		Temperature: 0.9,
	}
}
