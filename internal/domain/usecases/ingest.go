package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

const defaultEmbedBatch = 32

// IndexBuilder turns the corpus directory into a searchable index.
// A build either replaces the active index completely or leaves it untouched.
type IndexBuilder struct {
	loader    ports.DocumentLoader
	splitter  *RecursiveSplitter
	embedder  ports.Embedder
	store     ports.IndexStore
	recorder  ports.DecisionRecorder
	metric    string
	batchSize int

	mu sync.Mutex // serialises rebuilds
}

// IndexBuilderConfig holds the non-collaborator settings of a build.
type IndexBuilderConfig struct {
	Metric    string // recorded in IndexMeta, "l2" or "cosine"
	BatchSize int
}

// NewIndexBuilder creates an IndexBuilder with injected dependencies.
// recorder may be nil.
func NewIndexBuilder(
	loader ports.DocumentLoader,
	splitter *RecursiveSplitter,
	embedder ports.Embedder,
	store ports.IndexStore,
	recorder ports.DecisionRecorder,
	cfg IndexBuilderConfig,
) *IndexBuilder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbedBatch
	}
	if cfg.Metric == "" {
		cfg.Metric = "l2"
	}
	return &IndexBuilder{
		loader:    loader,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		recorder:  recorder,
		metric:    cfg.Metric,
		batchSize: cfg.BatchSize,
	}
}

// Build reads every document under dir, chunks and embeds it, and swaps the
// result in as the active index. An empty directory yields an empty index.
func (b *IndexBuilder) Build(ctx context.Context, dir string) (entities.IndexMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	meta, err := b.build(ctx, dir)
	if err != nil {
		b.recordError("index", err)
		return entities.IndexMeta{}, err
	}
	if b.recorder != nil {
		b.recorder.RecordIndexBuilt(meta, time.Since(start))
	}
	return meta, nil
}

func (b *IndexBuilder) build(ctx context.Context, dir string) (entities.IndexMeta, error) {
	docs, err := b.loader.LoadDir(ctx, dir)
	if err != nil {
		return entities.IndexMeta{}, fmt.Errorf("loading documents: %w", err)
	}

	var chunks []entities.Chunk
	for _, doc := range docs {
		chunks = append(chunks, b.splitter.SplitDocument(doc)...)
	}

	entries := make([]entities.IndexEntry, 0, len(chunks))
	dims := 0
	for start := 0; start < len(chunks); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return entities.IndexMeta{}, err
		}
		end := min(start+b.batchSize, len(chunks))

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return entities.IndexMeta{}, entities.Unavailable("embedder", "embed batch", err)
		}
		if len(vectors) != len(texts) {
			return entities.IndexMeta{}, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}

		for i, v := range vectors {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) == 0 || len(v) != dims {
				return entities.IndexMeta{}, fmt.Errorf("embedding for %s#%d has %d dimensions, want %d",
					chunks[start+i].Source, chunks[start+i].Seq, len(v), dims)
			}
			entries = append(entries, entities.IndexEntry{Chunk: chunks[start+i], Embedding: v})
		}
	}

	meta := entities.IndexMeta{
		EmbeddingModel: b.embedder.Model(),
		Dimensions:     dims,
		Metric:         b.metric,
		ChunkSize:      b.splitter.ChunkSize(),
		ChunkOverlap:   b.splitter.ChunkOverlap(),
		Documents:      len(docs),
		Chunks:         len(entries),
	}
	stored, err := b.store.Rebuild(ctx, meta, entries)
	if err != nil {
		return entities.IndexMeta{}, fmt.Errorf("storing index: %w", err)
	}
	return stored, nil
}

// Watch rebuilds the index whenever a supported file under dir changes.
// Bursts of events within debounce collapse into one rebuild. A failed
// rebuild is recorded and the previous index keeps serving.
// Watch blocks until ctx is done or the watcher closes its channel.
func (b *IndexBuilder) Watch(ctx context.Context, dir string, watcher ports.FileWatcher, debounce time.Duration) error {
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if b.relevant(ev) {
				fire = time.After(debounce)
			}
		case <-fire:
			fire = nil
			// Build records its own errors.
			_, _ = b.Build(ctx, dir)
		}
	}
}

func (b *IndexBuilder) relevant(ev ports.FileEvent) bool {
	if ev.Operation == ports.FileDeleted || ev.Operation == ports.FileRenamed {
		return true // the old name may have been a document
	}
	ext := strings.ToLower(filepath.Ext(ev.Path))
	for _, e := range b.loader.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

func (b *IndexBuilder) recordError(stage string, err error) {
	if b.recorder != nil {
		b.recorder.RecordError(stage, err)
	}
}
