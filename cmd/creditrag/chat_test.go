package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

type stubEngine struct {
	questions []string
}

func (s *stubEngine) Process(ctx context.Context, q string) (entities.Turn, error) {
	s.questions = append(s.questions, q)
	if strings.Contains(q, "fail") {
		return entities.Turn{Intent: entities.IntentAdvisory, Confidence: 0.2, Decision: entities.DecisionCloud},
			entities.Unavailable("cloud-llm", "escalate", errors.New("quota exceeded"))
	}
	return entities.Turn{
		Intent:     entities.IntentExplanation,
		Confidence: 0.71234,
		Decision:   entities.DecisionLocal,
		Response:   "1. Clear Definition",
	}, nil
}

func TestChatLoop(t *testing.T) {
	engine := &stubEngine{}
	in := strings.NewReader("What is a CCJ?\n   \nplease fail\nEXIT\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), in, &out, engine))

	assert.Equal(t, []string{"What is a CCJ?", "please fail"}, engine.questions)
	text := out.String()
	assert.Contains(t, text, "[Intent: explanation] [Confidence: 0.712] [Decision: local]")
	assert.Contains(t, text, "1. Clear Definition")
	assert.Contains(t, text, "[Intent: advisory] [Confidence: 0.200] [Decision: cloud]")
	assert.Contains(t, text, "Error: cloud-llm escalate: quota exceeded")
	assert.Contains(t, text, "Goodbye!")
}

func TestChatLoop_EOF(t *testing.T) {
	engine := &stubEngine{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), strings.NewReader("What is a CCJ?"), &out, engine))
	assert.Len(t, engine.questions, 1)
}

func TestNewAskOutput(t *testing.T) {
	out := newAskOutput(entities.Turn{
		ID:       "t1",
		Intent:   entities.IntentSimulation,
		Decision: entities.DecisionLocal,
		K:        8,
		Hits: []entities.SearchHit{
			{Chunk: entities.Chunk{Source: "missed-payments.md", Seq: 3}},
		},
	})
	assert.Equal(t, "simulation", out.Intent)
	assert.Equal(t, 8, out.K)
	assert.Equal(t, []string{"missed-payments.md#3"}, out.Sources)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"index", "chat", "ask", "serve"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestChatLoop_OversizedLineFailsOnlyThatTurn(t *testing.T) {
	engine := &stubEngine{}
	long := strings.Repeat("a", 70<<10)
	in := strings.NewReader(long + "\nWhat is a CCJ?\nquit\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), in, &out, engine))

	assert.Equal(t, []string{"What is a CCJ?"}, engine.questions)
	assert.Contains(t, out.String(), "Error: question is 71680 bytes")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestChatLoop_CRLF(t *testing.T) {
	engine := &stubEngine{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), strings.NewReader("What is a CCJ?\r\nexit\r\n"), &out, engine))
	assert.Equal(t, []string{"What is a CCJ?"}, engine.questions)
	assert.Contains(t, out.String(), "Goodbye!")
}
