package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIChat implements ports.ChatModel against any OpenAI-compatible
// chat completions endpoint. The client never retries.
type OpenAIChat struct {
	client openai.Client
	model  string
}

// NewOpenAIChat creates the adapter. baseURL may be empty for the public API.
func NewOpenAIChat(apiKey, baseURL, model string) (*OpenAIChat, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is empty")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIChat{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAIChat) Name() string { return "openai/" + o.model }

func (o *OpenAIChat) Invoke(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0),
	}
	for _, m := range messages {
		if m.Role == entities.RoleSystem {
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		} else {
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
