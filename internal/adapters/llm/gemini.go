package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiChat implements ports.ChatModel on the Google Generative AI API.
type GeminiChat struct {
	client *genai.Client
	model  string
}

// NewGeminiChat dials the API with apiKey. opts are appended to the client
// options, e.g. option.WithEndpoint.
//
// Requests go through statusTransport, which turns HTTP error statuses into
// plain errors. The generated REST client only retries googleapi errors, so
// each call reaches the API once.
func NewGeminiChat(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiChat, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	hc := &http.Client{Transport: &statusTransport{apiKey: apiKey, base: http.DefaultTransport}}
	opts = append([]option.ClientOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(hc),
	}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &GeminiChat{client: client, model: model}, nil
}

func (g *GeminiChat) Name() string { return "gemini/" + g.model }

// Invoke sends the user messages as one turn; system messages become the
// system instruction.
func (g *GeminiChat) Invoke(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	system, user := splitSystem(messages)

	model := g.client.GenerativeModel(g.model)
	model.SetCandidateCount(1)
	model.SetTemperature(0)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Role:  "system",
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: response has no candidates")
	}

	var output strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output.WriteString(string(text))
		}
	}
	return output.String(), nil
}

// Close releases the underlying connection.
func (g *GeminiChat) Close() error { return g.client.Close() }

// splitSystem joins system messages and non-system messages separately.
func splitSystem(messages []entities.ChatMessage) (system, user string) {
	var sys, usr []string
	for _, m := range messages {
		if m.Role == entities.RoleSystem {
			sys = append(sys, m.Content)
		} else {
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n\n"), strings.Join(usr, "\n\n")
}

// StatusError is a non-2xx reply from the Gemini REST API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// statusTransport authenticates requests with the API key header and reports
// error statuses as *StatusError.
type statusTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
