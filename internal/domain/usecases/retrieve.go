package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

// RetrievalDepth is the number of chunks requested per intent.
type RetrievalDepth struct {
	Explanation int
	Simulation  int
	Default     int
}

// DefaultRetrievalDepth is 6 for explanation, 8 for simulation and 4 otherwise.
var DefaultRetrievalDepth = RetrievalDepth{Explanation: 6, Simulation: 8, Default: 4}

// KFor returns the retrieval depth for intent.
func (d RetrievalDepth) KFor(intent entities.Intent) int {
	switch intent {
	case entities.IntentExplanation:
		return d.Explanation
	case entities.IntentSimulation:
		return d.Simulation
	default:
		return d.Default
	}
}

// Retrieval is the result of one nearest-neighbour query.
type Retrieval struct {
	Hits       []entities.SearchHit
	K          int
	Confidence float64
}

// Retriever embeds questions and queries the active index.
type Retriever struct {
	embedder ports.Embedder
	store    ports.IndexStore
	depth    RetrievalDepth
}

// NewRetriever creates a Retriever. A zero depth uses DefaultRetrievalDepth.
func NewRetriever(embedder ports.Embedder, store ports.IndexStore, depth RetrievalDepth) *Retriever {
	if depth == (RetrievalDepth{}) {
		depth = DefaultRetrievalDepth
	}
	return &Retriever{embedder: embedder, store: store, depth: depth}
}

// KFor returns the retrieval depth for intent.
func (r *Retriever) KFor(intent entities.Intent) int { return r.depth.KFor(intent) }

// Retrieve fetches the k nearest chunks for question, with k chosen by intent.
func (r *Retriever) Retrieve(ctx context.Context, question string, intent entities.Intent) (Retrieval, error) {
	k := r.KFor(intent)
	hits, err := r.Search(ctx, question, k)
	if err != nil {
		return Retrieval{K: k}, err
	}
	return Retrieval{Hits: hits, K: k, Confidence: Confidence(hits)}, nil
}

// Search returns up to k hits ordered by ascending distance.
// An index that was never built, an empty index and zero matches all yield
// an empty result. A query embedding model that differs from the index's
// build-time model is an IndexMismatchError.
func (r *Retriever) Search(ctx context.Context, question string, k int) ([]entities.SearchHit, error) {
	index, err := r.store.Active(ctx)
	if errors.Is(err, entities.ErrIndexNotBuilt) {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Unavailable("index", "open", err)
	}

	meta := index.Meta()
	if meta.EmbeddingModel != r.embedder.Model() {
		return nil, &entities.IndexMismatchError{IndexModel: meta.EmbeddingModel, QueryModel: r.embedder.Model()}
	}
	if meta.Chunks == 0 || k <= 0 {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, entities.Unavailable("embedder", "embed query", err)
	}
	if len(embedding) != meta.Dimensions {
		return nil, fmt.Errorf("%w: query embedding has %d dimensions, index has %d",
			entities.ErrIndexMismatch, len(embedding), meta.Dimensions)
	}

	hits, err := index.Search(ctx, embedding, k)
	if err != nil {
		return nil, entities.Unavailable("index", "search", err)
	}
	return hits, nil
}

// Confidence maps the best distance d to 1/(1+d). No hits means zero.
func Confidence(hits []entities.SearchHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	return 1 / (1 + hits[0].Distance)
}

// JoinContext concatenates hit texts, separated by blank lines.
func JoinContext(hits []entities.SearchHit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}
