package usecases

import (
	"context"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

// IntentClassifier asks the local model for exactly one intent label.
type IntentClassifier struct {
	model    ports.ChatModel
	prompt   string
	recorder ports.DecisionRecorder
}

// NewIntentClassifier creates a classifier using systemPrompt as its
// instructions. recorder may be nil.
func NewIntentClassifier(model ports.ChatModel, systemPrompt string, recorder ports.DecisionRecorder) *IntentClassifier {
	return &IntentClassifier{model: model, prompt: systemPrompt, recorder: recorder}
}

// Classify always returns a valid intent unless the model call fails.
// Labels outside the allowed set fall back to explanation.
func (c *IntentClassifier) Classify(ctx context.Context, question string) (entities.Intent, error) {
	raw, err := c.model.Invoke(ctx, []entities.ChatMessage{
		{Role: entities.RoleSystem, Content: c.prompt},
		{Role: entities.RoleUser, Content: question},
	})
	if err != nil {
		return "", entities.Unavailable("local-llm", "classify", err)
	}

	intent, ok := entities.ParseIntent(raw)
	if !ok && c.recorder != nil {
		c.recorder.RecordClassifierFallback(raw)
	}
	return intent, nil
}
