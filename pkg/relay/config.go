package relay

import (
	"time"

	"github.com/sashabaranov/go-openai"
)

// Upstream defaults. Every call uses these unless a Config overrides them.
const (
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModel        = openai.GPT3Dot5Turbo
	DefaultMaxTokens    = 1000
	DefaultTimeout      = 30 * time.Second
	DefaultSystemPrompt = "You are an automotive troubleshooting assistant. Help diagnose car problems."
)

// Config is the relay configuration. It is copied into the Relay at
// construction and never mutated afterwards.
type Config struct {
	// APIKey is the bearer credential sent to the upstream.
	// An empty key is allowed; the upstream will reject every call.
	APIKey string

	// BaseURL of the upstream completion API (e.g., "https://api.openai.com/v1")
	BaseURL string

	// Model identifier sent with every request
	Model string

	// MaxTokens caps generated output tokens
	MaxTokens int

	// Timeout bounds a single upstream call
	Timeout time.Duration

	// SystemPrompt is prepended to single-turn conversations
	SystemPrompt string
}

// DefaultConfig returns the upstream defaults with an empty credential.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Timeout:      DefaultTimeout,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	return c
}
