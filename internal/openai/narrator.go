package openai

import (
	"context"
	"fmt"

	"loan-underwriting-orchestrator/internal/domain"
)

// Narrator writes the free-text rationale attached to an assessment. The
// verdict is computed by the rule functions before the model is asked.
type Narrator struct {
	client Client
	model  string
}

func NewNarrator(client Client, model string) *Narrator {
	return &Narrator{client: client, model: model}
}

func (n *Narrator) Narrate(ctx context.Context, dim domain.Dimension, app domain.Application, source any, verdict any) (string, error) {
	raw, err := n.client.CompleteJSON(ctx, CompletionRequest{
		Model:        n.model,
		SystemPrompt: SystemPromptFor(dim),
		UserPrompt:   BuildAssessmentUserPrompt(app, source, verdict),
		Temperature:  0.1,
	})
	if err != nil {
		return "", fmt.Errorf("%s rationale: %w", dim, err)
	}
	text, err := ParseRationale(raw)
	if err != nil {
		return "", fmt.Errorf("%s rationale: %w", dim, err)
	}
	return text, nil
}
