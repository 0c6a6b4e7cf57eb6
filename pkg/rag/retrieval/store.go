package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/embedding"

	"github.com/google/uuid"
)

// ErrDegraded marks a retrieval that fell back to empty context.
var ErrDegraded = errors.New("retrieval degraded")

// Item is one prior turn returned as context, closest first.
type Item struct {
	TurnID    uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	Distance  float64
}

// Document is a persisted turn waiting to be embedded.
type Document struct {
	TurnID    uuid.UUID `json:"turn_id"`
	SessionID uuid.UUID `json:"session_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// Index is the read side of the vector index. Results must be restricted to ownerID.
type Index interface {
	Search(ctx context.Context, ownerID uuid.UUID, vector []float32, limit int) ([]Item, error)
}

// Writer is the append-only write side of the vector index.
type Writer interface {
	Put(ctx context.Context, doc Document, vector []float32) error
}

// Store answers "what did this owner say before that resembles this?".
// It never fails: any problem yields empty context and a log line.
type Store struct {
	provider   embedding.EmbeddingProvider
	index      Index
	logger     logger.ILogger
	timeout    time.Duration
	dimensions int
}

func NewStore(provider embedding.EmbeddingProvider, index Index, logger logger.ILogger, timeout time.Duration, dimensions int) *Store {
	return &Store{
		provider:   provider,
		index:      index,
		logger:     logger,
		timeout:    timeout,
		dimensions: dimensions,
	}
}

// Retrieve embeds text as a query and returns up to limit prior turns of the owner.
func (s *Store) Retrieve(ctx context.Context, ownerID uuid.UUID, text string, limit int) []Item {
	if limit <= 0 || strings.TrimSpace(text) == "" {
		return []Item{}
	}

	embedCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.provider.Generate(embedCtx, text, embedding.TaskRetrievalQuery)
	if err != nil {
		s.degraded("query embedding failed", ownerID, err)
		return []Item{}
	}

	return s.Query(ctx, ownerID, res.Embedding.Values, limit)
}

// Query runs a similarity search with an already computed vector.
func (s *Store) Query(ctx context.Context, ownerID uuid.UUID, vector []float32, limit int) []Item {
	if limit <= 0 {
		return []Item{}
	}
	if len(vector) == 0 || (s.dimensions > 0 && len(vector) != s.dimensions) {
		s.degraded("query vector has unexpected dimensions", ownerID, nil)
		return []Item{}
	}

	searchCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.index.Search(searchCtx, ownerID, vector, limit)
	if err != nil {
		s.degraded("vector search failed", ownerID, err)
		return []Item{}
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []Item{}
	}

	s.logger.Debug("RETRIEVAL", "Context retrieved", map[string]interface{}{
		"owner_id": ownerID.String(),
		"count":    len(items),
	})
	return items
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) degraded(reason string, ownerID uuid.UUID, cause error) {
	details := map[string]interface{}{
		"owner_id": ownerID.String(),
		"reason":   reason,
	}
	err := ErrDegraded
	if cause != nil {
		err = errors.Join(ErrDegraded, cause)
	}
	s.logger.Warn("RETRIEVAL", "Context retrieval degraded to empty", logger.ErrorDetails(err, details))
}
