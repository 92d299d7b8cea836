// Package ports defines interfaces for external collaborators.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// Embedder turns text into fixed-dimension vectors.
// Output is deterministic for the same model version.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the embedding model. It is recorded alongside the index.
	Model() string
}

// ChatModel is a language-model collaborator, local or remote.
// Temperature is expected to be zero.
type ChatModel interface {
	// Invoke sends the messages and returns the model's text reply.
	Invoke(ctx context.Context, messages []entities.ChatMessage) (string, error)

	// Name identifies the provider and model, e.g. "ollama/gemma:2b-instruct".
	Name() string
}

// VectorIndex answers nearest-neighbour queries against a built index.
type VectorIndex interface {
	// Search returns up to k hits ordered by ascending distance.
	Search(ctx context.Context, embedding []float32, k int) ([]entities.SearchHit, error)

	// Meta describes how the index was built.
	Meta() entities.IndexMeta
}

// IndexStore owns the active index and replaces it atomically.
type IndexStore interface {
	// Active returns an immutable snapshot of the current index,
	// or entities.ErrIndexNotBuilt.
	Active(ctx context.Context) (VectorIndex, error)

	// Rebuild stages a new index from entries and swaps it in, returning the
	// stored metadata. On failure the previous index is left untouched.
	Rebuild(ctx context.Context, meta entities.IndexMeta, entries []entities.IndexEntry) (entities.IndexMeta, error)
}

// DocumentLoader reads the corpus.
type DocumentLoader interface {
	// LoadDir reads every supported document under dir, ordered by source.
	LoadDir(ctx context.Context, dir string) ([]entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
	FileRenamed
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	case FileRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// DecisionRecorder receives the audit record of every turn and index build.
// Implementations must be safe for concurrent use.
type DecisionRecorder interface {
	// RecordTurn is called once the routing decision is made, before answering.
	RecordTurn(turn entities.Turn)
	// RecordClassifierFallback keeps the raw label the classifier rejected.
	RecordClassifierFallback(raw string)
	RecordIndexBuilt(meta entities.IndexMeta, elapsed time.Duration)
	RecordError(stage string, err error)
}
