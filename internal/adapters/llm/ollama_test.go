package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

func TestOllamaChat_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma:2b-instruct", req["model"])
		assert.Equal(t, false, req["stream"])
		assert.Equal(t, map[string]interface{}{"temperature": float64(0)}, req["options"])

		msgs := req["messages"].([]interface{})
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "advisory"},
			"done":    true,
		})
	}))
	defer server.Close()

	chat := NewOllamaChat(server.URL+"/", "")
	out, err := chat.Invoke(context.Background(), []entities.ChatMessage{
		{Role: entities.RoleSystem, Content: "classify"},
		{Role: entities.RoleUser, Content: "How do I fix my credit?"},
	})

	require.NoError(t, err)
	assert.Equal(t, "advisory", out)
	assert.Equal(t, "ollama/gemma:2b-instruct", chat.Name())
}

func TestOllamaChat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'gemma:2b-instruct' not found"}`))
	}))
	defer server.Close()

	_, err := NewOllamaChat(server.URL, "").Invoke(context.Background(), []entities.ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaChat_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOllamaChat(server.URL, "m").Invoke(ctx, []entities.ChatMessage{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIChat_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])
		assert.Equal(t, float64(0), req["temperature"])
		assert.Len(t, req["messages"], 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "1. Goal"}}]
		}`))
	}))
	defer server.Close()

	chat, err := NewOpenAIChat("sk-test", server.URL+"/v1/", "gpt-test")
	require.NoError(t, err)

	out, err := chat.Invoke(context.Background(), []entities.ChatMessage{{Role: entities.RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, "1. Goal", out)
	assert.Equal(t, "openai/gpt-test", chat.Name())
}

func TestOpenAIChat_NoRetryOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	chat, err := NewOpenAIChat("sk-test", server.URL+"/v1/", "")
	require.NoError(t, err)

	_, err = chat.Invoke(context.Background(), []entities.ChatMessage{{Role: entities.RoleUser, Content: "q"}})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewCloudClients_RequireKey(t *testing.T) {
	_, err := NewOpenAIChat("", "", "")
	assert.Error(t, err)

	_, err = NewGeminiChat(context.Background(), "", "")
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	system, user := splitSystem([]entities.ChatMessage{
		{Role: entities.RoleSystem, Content: "rules"},
		{Role: entities.RoleUser, Content: "first"},
		{Role: entities.RoleUser, Content: "second"},
	})
	assert.Equal(t, "rules", system)
	assert.Equal(t, "first\n\nsecond", user)
}

func TestGeminiChat_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "g-test", r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chat, err := NewGeminiChat(ctx, "g-test", "", option.WithEndpoint(server.URL))
	require.NoError(t, err)
	defer chat.Close()

	_, err = chat.Invoke(ctx, []entities.ChatMessage{{Role: entities.RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
	assert.Contains(t, status.Body, "model overloaded")
	assert.Equal(t, int32(1), calls.Load())
}
