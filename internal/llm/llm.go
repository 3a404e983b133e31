// Package llm provides the language-model client used for item labeling
// and summarization. An OpenAI-compatible implementation talks to any
// endpoint speaking the chat-completions protocol; a mock implementation
// keeps the pipeline runnable without credentials.
package llm

import (
	"context"

	"github.com/rs/zerolog"

	"feedpulse/internal/core/domain"
	"feedpulse/internal/platform/config"
)

// LabelRequest is one item offered to the model for classification.
type LabelRequest struct {
	ID          string
	Title       string
	Link        string
	Description string
	Content     string
	SourceTitle string
}

// LabelResult is the model's classification for one item. IDs echo the
// request so batch responses can be attributed per item.
type LabelResult struct {
	ID         string   `json:"id"`
	Identities []string `json:"identities"`
	Themes     []string `json:"themes"`
	Extra      []string `json:"extra"`
	VibeCoding bool     `json:"vibe_coding"`
}

// LabelSet converts the raw model output into the domain representation.
func (r LabelResult) LabelSet() domain.LabelSet {
	return domain.LabelSet{
		Identities: r.Identities,
		Themes:     r.Themes,
		Extra:      r.Extra,
		VibeCoding: r.VibeCoding,
	}
}

// SummaryRequest is one item offered to the model for summarization.
type SummaryRequest struct {
	Title       string
	Link        string
	Content     string
	SourceTitle string
}

// Client is the model-facing surface of the enrichment pipeline.
type Client interface {
	LabelItems(ctx context.Context, requests []LabelRequest) ([]LabelResult, error)
	Summarize(ctx context.Context, request SummaryRequest) (string, error)
}

// New selects a client implementation from configuration: a real
// OpenAI-compatible client when an API key is configured, the mock
// otherwise.
func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == mockAPIKey {
		logger.Warn().Msg("no LLM API key configured, using mock client")

		return NewMock()
	}

	return NewOpenAI(cfg, logger)
}
