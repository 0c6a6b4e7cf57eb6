package retrieval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/internal/repository/memory"
	"clinical-intake-be/pkg/embedding"
	"clinical-intake-be/pkg/rag/retrieval"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto two axes so similarity is predictable.
type keywordEmbedder struct {
	err      error
	dims     int
	lastTask string
}

func (k *keywordEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	k.lastTask = taskType
	if k.err != nil {
		return nil, k.err
	}
	vec := []float32{0.1, 0.1}
	if k.dims > 0 {
		vec = make([]float32, k.dims)
	}
	if len(text) > 0 && (text[0] == 's' || text[0] == 'S') {
		vec[0] = 1
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: vec}}, nil
}

type failingIndex struct{}

func (failingIndex) Search(ctx context.Context, ownerID uuid.UUID, vector []float32, limit int) ([]retrieval.Item, error) {
	return nil, errors.New("connection refused")
}

func TestStore_RetrieveScopedAndLimited(t *testing.T) {
	ctx := context.Background()
	idx := memory.NewEmbeddingIndex()
	owner, other := uuid.New(), uuid.New()

	for i := 0; i < 8; i++ {
		require.NoError(t, idx.Put(ctx, retrieval.Document{TurnID: uuid.New(), OwnerID: owner, Role: "user", Content: "sleep"}, []float32{1, 0}))
	}
	require.NoError(t, idx.Put(ctx, retrieval.Document{TurnID: uuid.New(), OwnerID: other, Role: "user", Content: "sleep other"}, []float32{1, 0}))

	emb := &keywordEmbedder{}
	store := retrieval.NewStore(emb, idx, logger.NewNopLogger(), time.Second, 2)

	items := store.Retrieve(ctx, owner, "sleep is bad", 5)
	assert.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, "sleep", item.Content)
	}
	assert.Equal(t, embedding.TaskRetrievalQuery, emb.lastTask)
}

func TestStore_EmbeddingFailureDegradesToEmpty(t *testing.T) {
	store := retrieval.NewStore(&keywordEmbedder{err: errors.New("quota")}, memory.NewEmbeddingIndex(), logger.NewNopLogger(), time.Second, 2)

	items := store.Retrieve(context.Background(), uuid.New(), "hello", 5)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStore_IndexFailureDegradesToEmpty(t *testing.T) {
	store := retrieval.NewStore(&keywordEmbedder{}, failingIndex{}, logger.NewNopLogger(), time.Second, 2)

	items := store.Retrieve(context.Background(), uuid.New(), "hello", 5)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStore_DimensionMismatchDegradesToEmpty(t *testing.T) {
	store := retrieval.NewStore(&keywordEmbedder{dims: 3}, memory.NewEmbeddingIndex(), logger.NewNopLogger(), time.Second, 2)
	assert.Empty(t, store.Retrieve(context.Background(), uuid.New(), "sleep", 5))
}

func TestStore_EmptyTextSkipsEmbedding(t *testing.T) {
	emb := &keywordEmbedder{}
	store := retrieval.NewStore(emb, memory.NewEmbeddingIndex(), logger.NewNopLogger(), time.Second, 2)

	assert.Empty(t, store.Retrieve(context.Background(), uuid.New(), "   ", 5))
	assert.Empty(t, emb.lastTask)
}
