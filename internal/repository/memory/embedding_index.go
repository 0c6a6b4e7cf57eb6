package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"clinical-intake-be/pkg/rag/retrieval"

	"github.com/google/uuid"
)

type indexEntry struct {
	doc    retrieval.Document
	vector []float32
}

// EmbeddingIndex is an in-process vector index with cosine distance.
// Used with VECTOR_INDEX=memory and in tests.
type EmbeddingIndex struct {
	mu      sync.RWMutex
	entries []indexEntry
	byTurn  map[uuid.UUID]struct{}
}

var (
	_ retrieval.Index  = &EmbeddingIndex{}
	_ retrieval.Writer = &EmbeddingIndex{}
)

func NewEmbeddingIndex() *EmbeddingIndex {
	return &EmbeddingIndex{
		byTurn: make(map[uuid.UUID]struct{}),
	}
}

// Put appends the vector. A second vector for the same turn is ignored.
func (x *EmbeddingIndex) Put(ctx context.Context, doc retrieval.Document, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byTurn[doc.TurnID]; exists {
		return nil
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)
	x.entries = append(x.entries, indexEntry{doc: doc, vector: stored})
	x.byTurn[doc.TurnID] = struct{}{}
	return nil
}

func (x *EmbeddingIndex) Search(ctx context.Context, ownerID uuid.UUID, vector []float32, limit int) ([]retrieval.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var items []retrieval.Item
	for _, e := range x.entries {
		if e.doc.OwnerID != ownerID || len(e.vector) != len(vector) {
			continue
		}
		items = append(items, retrieval.Item{
			TurnID:    e.doc.TurnID,
			SessionID: e.doc.SessionID,
			Role:      e.doc.Role,
			Content:   e.doc.Content,
			Distance:  cosineDistance(e.vector, vector),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Distance < items[j].Distance
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (x *EmbeddingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Has reports whether the turn has been indexed.
func (x *EmbeddingIndex) Has(turnID uuid.UUID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.byTurn[turnID]
	return ok
}

// cosineDistance matches pgvector's <=>: 1 - cosine similarity.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
