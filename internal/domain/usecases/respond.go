package usecases

import (
	"context"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
	"github.com/0xcro3dile/creditrag-go/internal/prompts"
)

// Responder renders the intent-specific prompt and asks a model to answer it.
type Responder struct {
	local     ports.ChatModel
	catalogue *prompts.Catalogue
}

// NewResponder creates a Responder answering through the local model.
func NewResponder(local ports.ChatModel, catalogue *prompts.Catalogue) *Responder {
	return &Responder{local: local, catalogue: catalogue}
}

// template picks the response contract for intent. Anything unexpected gets
// the explanation layout.
func (r *Responder) template(intent entities.Intent) (string, prompts.Template) {
	var label entities.Intent
	switch intent {
	case entities.IntentExplanation:
		label = entities.IntentExplanation
	case entities.IntentAdvisory:
		label = entities.IntentAdvisory
	case entities.IntentRiskAssessment:
		label = entities.IntentRiskAssessment
	case entities.IntentSimulation:
		label = entities.IntentSimulation
	default:
		label = entities.IntentExplanation
	}
	t, _ := r.catalogue.Template(string(label))
	return string(label), t
}

// Prompt renders the grounded prompt for intent.
func (r *Responder) Prompt(intent entities.Intent, question, context string) string {
	_, t := r.template(intent)
	return r.catalogue.RenderAnswer(t, question, context)
}

// EscalationPrompt renders the context-free prompt sent to the cloud model.
func (r *Responder) EscalationPrompt(intent entities.Intent, question string) string {
	label, t := r.template(intent)
	return r.catalogue.RenderEscalation(label, t, question)
}

// Answer formats the question for intent and invokes the local model.
func (r *Responder) Answer(ctx context.Context, intent entities.Intent, question, context string) (string, error) {
	out, err := r.local.Invoke(ctx, []entities.ChatMessage{
		{Role: entities.RoleUser, Content: r.Prompt(intent, question, context)},
	})
	if err != nil {
		return "", entities.Unavailable("local-llm", "answer", err)
	}
	return out, nil
}

// Escalate asks cloud for an answer from the intent and question alone.
func (r *Responder) Escalate(ctx context.Context, cloud ports.ChatModel, intent entities.Intent, question string) (string, error) {
	if cloud == nil {
		return "", entities.Unavailable("cloud-llm", "escalate", errCloudNotConfigured)
	}
	out, err := cloud.Invoke(ctx, []entities.ChatMessage{
		{Role: entities.RoleUser, Content: r.EscalationPrompt(intent, question)},
	})
	if err != nil {
		return "", entities.Unavailable("cloud-llm", "escalate", err)
	}
	return out, nil
}
