// Package vectordb provides the vector index adapters.
// Indexes are immutable in memory snapshots; persistence is SQLite.
package vectordb

import (
	"context"
	"fmt"
	"sort"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// MemoryIndex implements ports.VectorIndex with a brute-force scan.
// It is never modified after construction, so concurrent searches need no locks.
type MemoryIndex struct {
	meta    entities.IndexMeta
	metric  Metric
	entries []entities.IndexEntry
}

// NewMemoryIndex validates entries against meta and builds a snapshot.
func NewMemoryIndex(meta entities.IndexMeta, entries []entities.IndexEntry) (*MemoryIndex, error) {
	metric, err := ParseMetric(meta.Metric)
	if err != nil {
		return nil, err
	}
	meta.Metric = string(metric)
	if meta.Chunks != len(entries) {
		return nil, fmt.Errorf("index records %d chunks but holds %d", meta.Chunks, len(entries))
	}
	for _, e := range entries {
		if len(e.Embedding) != meta.Dimensions {
			return nil, fmt.Errorf("chunk %s#%d has %d dimensions, index has %d",
				e.Chunk.Source, e.Chunk.Seq, len(e.Embedding), meta.Dimensions)
		}
	}
	return &MemoryIndex{meta: meta, metric: metric, entries: entries}, nil
}

func (m *MemoryIndex) Meta() entities.IndexMeta { return m.meta }

// Search returns up to k hits by ascending distance, ties broken by source
// then sequence.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, k int) ([]entities.SearchHit, error) {
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	if len(embedding) != m.meta.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(embedding), m.meta.Dimensions)
	}

	hits := make([]entities.SearchHit, len(m.entries))
	for i, e := range m.entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = entities.SearchHit{Chunk: e.Chunk, Distance: m.metric.distance(embedding, e.Embedding)}
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Chunk.Source != b.Chunk.Source {
			return a.Chunk.Source < b.Chunk.Source
		}
		return a.Chunk.Seq < b.Chunk.Seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
