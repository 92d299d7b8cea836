package usecases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

// mockEmbedder implements ports.Embedder for testing
type mockEmbedder struct {
	model   string
	embedFn func(text string) ([]float32, error)
	calls   int
	mu      sync.Mutex
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

func (m *mockEmbedder) Model() string {
	if m.model == "" {
		return "test-embed"
	}
	return m.model
}

// mockChatModel implements ports.ChatModel for testing
type mockChatModel struct {
	name     string
	reply    string
	replyFn  func(messages []entities.ChatMessage) (string, error)
	received [][]entities.ChatMessage
	mu       sync.Mutex
}

func (m *mockChatModel) Invoke(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	m.mu.Lock()
	m.received = append(m.received, messages)
	m.mu.Unlock()
	if m.replyFn != nil {
		return m.replyFn(messages)
	}
	return m.reply, nil
}

func (m *mockChatModel) Name() string { return m.name }

func (m *mockChatModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func (m *mockChatModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return ""
	}
	msgs := m.received[len(m.received)-1]
	return msgs[len(msgs)-1].Content
}

// mockIndex implements ports.VectorIndex with fixed hits
type mockIndex struct {
	meta      entities.IndexMeta
	hits      []entities.SearchHit
	searchErr error
	lastK     int
}

func (m *mockIndex) Search(ctx context.Context, emb []float32, k int) ([]entities.SearchHit, error) {
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockIndex) Meta() entities.IndexMeta { return m.meta }

// mockStore implements ports.IndexStore
type mockStore struct {
	index      *mockIndex
	activeErr  error
	rebuildErr error
	rebuilt    []entities.IndexEntry
	rebuilds   int
	mu         sync.Mutex
}

func (m *mockStore) Active(ctx context.Context) (ports.VectorIndex, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	if m.index == nil {
		return nil, entities.ErrIndexNotBuilt
	}
	return m.index, nil
}

func (m *mockStore) Rebuild(ctx context.Context, meta entities.IndexMeta, entries []entities.IndexEntry) (entities.IndexMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	if m.rebuildErr != nil {
		return entities.IndexMeta{}, m.rebuildErr
	}
	meta.BuildID = "build-1"
	m.rebuilt = entries
	return meta, nil
}

func (m *mockStore) rebuildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuilds
}

// mockLoader implements ports.DocumentLoader
type mockLoader struct {
	docs []entities.Document
	err  error
}

func (m *mockLoader) LoadDir(ctx context.Context, dir string) ([]entities.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	docs := append([]entities.Document(nil), m.docs...)
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

func (m *mockLoader) SupportedExtensions() []string { return []string{".txt", ".md"} }

// mockWatcher implements ports.FileWatcher over a test-owned channel
type mockWatcher struct {
	events chan ports.FileEvent
}

func (m *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return m.events, nil
}

func (m *mockWatcher) Stop() error { return nil }

// mockRecorder implements ports.DecisionRecorder
type mockRecorder struct {
	mu        sync.Mutex
	turns     []entities.Turn
	fallbacks []string
	builds    []entities.IndexMeta
	errors    map[string]int
}

func (m *mockRecorder) RecordTurn(turn entities.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

func (m *mockRecorder) RecordClassifierFallback(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, raw)
}

func (m *mockRecorder) RecordIndexBuilt(meta entities.IndexMeta, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds = append(m.builds, meta)
}

func (m *mockRecorder) RecordError(stage string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[stage]++
}

func (m *mockRecorder) errorCount(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[stage]
}

func hitsWithBest(distance float64, n int) []entities.SearchHit {
	hits := make([]entities.SearchHit, n)
	for i := range hits {
		hits[i] = entities.SearchHit{
			Chunk:    entities.Chunk{Text: "chunk text", Source: "credit.md", Seq: i},
			Distance: distance + float64(i)*0.1,
		}
	}
	return hits
}

func builtIndex(hits []entities.SearchHit) *mockIndex {
	return &mockIndex{
		meta: entities.IndexMeta{EmbeddingModel: "test-embed", Dimensions: 3, Chunks: len(hits)},
		hits: hits,
	}
}
