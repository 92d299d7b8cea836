package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(nil))
	assert.Equal(t, 1.0, Confidence([]entities.SearchHit{{Distance: 0}}))
	assert.Equal(t, 0.5, Confidence([]entities.SearchHit{{Distance: 1}, {Distance: 2}}))
	assert.InDelta(t, 1/1.25, Confidence([]entities.SearchHit{{Distance: 0.25}}), 1e-12)
}

func TestRetrievalDepth_KFor(t *testing.T) {
	d := DefaultRetrievalDepth
	assert.Equal(t, 6, d.KFor(entities.IntentExplanation))
	assert.Equal(t, 8, d.KFor(entities.IntentSimulation))
	assert.Equal(t, 4, d.KFor(entities.IntentAdvisory))
	assert.Equal(t, 4, d.KFor(entities.IntentRiskAssessment))
}

func TestRetriever_RequestsIntentScaledK(t *testing.T) {
	index := builtIndex(hitsWithBest(0.2, 10))
	r := NewRetriever(&mockEmbedder{}, &mockStore{index: index}, RetrievalDepth{})

	got, err := r.Retrieve(context.Background(), "What if I default?", entities.IntentSimulation)
	require.NoError(t, err)

	assert.Equal(t, 8, got.K)
	assert.Equal(t, 8, index.lastK)
	assert.Len(t, got.Hits, 8)
	assert.InDelta(t, 1/1.2, got.Confidence, 1e-9)
}

func TestRetriever_EmptyIndexSkipsEmbedding(t *testing.T) {
	embedder := &mockEmbedder{}
	r := NewRetriever(embedder, &mockStore{index: builtIndex(nil)}, RetrievalDepth{})

	got, err := r.Retrieve(context.Background(), "What is a credit score?", entities.IntentExplanation)
	require.NoError(t, err)

	assert.Empty(t, got.Hits)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Equal(t, 6, got.K)
	assert.Zero(t, embedder.calls)
}

func TestRetriever_NeverBuiltIsEmpty(t *testing.T) {
	r := NewRetriever(&mockEmbedder{}, &mockStore{}, RetrievalDepth{})

	got, err := r.Retrieve(context.Background(), "q", entities.IntentAdvisory)
	require.NoError(t, err)
	assert.Empty(t, got.Hits)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestRetriever_ZeroMatches(t *testing.T) {
	index := builtIndex(nil)
	index.meta.Chunks = 5
	r := NewRetriever(&mockEmbedder{}, &mockStore{index: index}, RetrievalDepth{})

	got, err := r.Retrieve(context.Background(), "q", entities.IntentAdvisory)
	require.NoError(t, err)
	assert.Empty(t, got.Hits)
	assert.Equal(t, 4, index.lastK)
}

func TestRetriever_ModelMismatch(t *testing.T) {
	embedder := &mockEmbedder{model: "nomic-embed-text"}
	r := NewRetriever(embedder, &mockStore{index: builtIndex(hitsWithBest(0, 3))}, RetrievalDepth{})

	_, err := r.Retrieve(context.Background(), "q", entities.IntentAdvisory)
	var mismatch *entities.IndexMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "test-embed", mismatch.IndexModel)
	assert.Equal(t, "nomic-embed-text", mismatch.QueryModel)
	assert.Zero(t, embedder.calls)
}

func TestRetriever_DimensionMismatch(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return []float32{1, 2}, nil }}
	r := NewRetriever(embedder, &mockStore{index: builtIndex(hitsWithBest(0, 3))}, RetrievalDepth{})

	_, err := r.Retrieve(context.Background(), "q", entities.IntentAdvisory)
	assert.ErrorIs(t, err, entities.ErrIndexMismatch)
}

func TestRetriever_CollaboratorFailures(t *testing.T) {
	ctx := context.Background()

	failingEmbedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, errors.New("timeout") }}
	r := NewRetriever(failingEmbedder, &mockStore{index: builtIndex(hitsWithBest(0, 3))}, RetrievalDepth{})
	_, err := r.Retrieve(ctx, "q", entities.IntentAdvisory)
	assert.ErrorIs(t, err, entities.ErrCollaboratorUnavailable)

	index := builtIndex(hitsWithBest(0, 3))
	index.searchErr = errors.New("disk I/O error")
	r = NewRetriever(&mockEmbedder{}, &mockStore{index: index}, RetrievalDepth{})
	_, err = r.Retrieve(ctx, "q", entities.IntentAdvisory)
	assert.ErrorIs(t, err, entities.ErrCollaboratorUnavailable)

	r = NewRetriever(&mockEmbedder{}, &mockStore{activeErr: errors.New("corrupt")}, RetrievalDepth{})
	_, err = r.Retrieve(ctx, "q", entities.IntentAdvisory)
	assert.ErrorIs(t, err, entities.ErrCollaboratorUnavailable)
}

func TestJoinContext(t *testing.T) {
	hits := []entities.SearchHit{
		{Chunk: entities.Chunk{Text: "first"}},
		{Chunk: entities.Chunk{Text: "second"}},
	}
	assert.Equal(t, "first\n\nsecond", JoinContext(hits))
	assert.Equal(t, "", JoinContext(nil))
}
