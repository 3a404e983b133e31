package llm

import (
	"context"
	"fmt"

	"feedpulse/internal/core/domain"
)

// mockClient returns deterministic labels and summaries so the pipeline
// can run end to end without an API key.
type mockClient struct{}

// NewMock creates the credential-free mock client.
func NewMock() Client {
	return &mockClient{}
}

func (m *mockClient) LabelItems(_ context.Context, requests []LabelRequest) ([]LabelResult, error) {
	results := make([]LabelResult, 0, len(requests))

	for _, req := range requests {
		results = append(results, LabelResult{
			ID:         req.ID,
			Identities: []string{domain.TagDevEssential},
			Themes:     []string{domain.ThemeTutorial},
		})
	}

	return results, nil
}

func (m *mockClient) Summarize(_ context.Context, request SummaryRequest) (string, error) {
	return fmt.Sprintf("## Key Arguments\n\n- Mock summary of %q.\n\n## Value to Me\n\nPlaceholder output produced without an LLM API key.", request.Title), nil
}
