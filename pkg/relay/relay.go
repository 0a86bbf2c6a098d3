// Package relay forwards client conversations to an upstream chat completion
// API and extracts the generated reply.
//
// The relay is stateless: every call carries the whole conversation, and the
// only shared data is the read-only Config.
package relay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
	"github.com/papercomputeco/troubleshoot/pkg/merkle"
)

// Relay relays conversations to the upstream completion API.
type Relay struct {
	config Config
	client *openai.Client
	logger *zap.Logger
}

// New creates a Relay. Zero-valued Config fields take their defaults.
func New(config Config, logger *zap.Logger) *Relay {
	config = config.withDefaults()

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{
		Timeout:   config.Timeout,
		Transport: captureTransport{base: http.DefaultTransport},
	}

	return &Relay{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

// Config returns a copy of the relay configuration.
func (r *Relay) Config() Config {
	return r.config
}

// Handle forwards turns to the upstream and returns the first choice's reply.
// A single-turn conversation gets the system prompt prepended; longer
// conversations are forwarded unmodified. Exactly one upstream call is made
// and it is never retried. Errors are *Error values.
func (r *Relay) Handle(ctx context.Context, turns []llm.Message) (string, error) {
	if len(turns) == 0 {
		return "", InputError(ErrEmptyConversation)
	}

	conversation := r.prepare(turns)
	fp := merkle.Sum(turns)

	r.logger.Debug("forwarding conversation to upstream",
		zap.String("model", r.config.Model),
		zap.Int("turns", len(turns)),
		zap.Bool("system_prompt", len(conversation) != len(turns)),
		zap.String("conversation", merkle.Short(fp.Root, 12)),
		zap.String("head", merkle.Short(fp.Head, 12)),
	)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	ctx, raw := withCapture(ctx)

	startTime := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.config.Model,
		Messages:  toUpstream(conversation),
		MaxTokens: r.config.MaxTokens,
	})
	if err != nil {
		classified := classify(err)
		r.logger.Debug("upstream call failed",
			zap.String("kind", string(KindOf(classified))),
			zap.Int("status", upstreamStatus(err)),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
		return "", classified
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindResponseFormat, Err: errNoChoices}
	}
	if err := checkFirstChoice(raw.Bytes()); err != nil {
		r.logger.Debug("upstream response missing expected fields",
			zap.String("body_preview", truncate(raw.String(), 200)),
			zap.Error(err),
		)
		return "", err
	}

	reply := resp.Choices[0].Message.Content
	r.logger.Debug("received response from upstream",
		zap.String("model", resp.Model),
		zap.String("content_preview", truncate(reply, 100)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return reply, nil
}

// prepare applies the first-contact rule: exactly one turn gets the system
// prompt in front of it. The caller's slice is never modified.
func (r *Relay) prepare(turns []llm.Message) []llm.Message {
	if len(turns) != 1 {
		return turns
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: r.config.SystemPrompt},
		turns[0],
	}
}

func toUpstream(turns []llm.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}
	return msgs
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
