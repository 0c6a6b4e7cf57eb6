package retrieval

import (
	"context"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// RepositoryIndex is the pgvector-backed index, reached through the unit of work.
type RepositoryIndex struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRepositoryIndex(uowFactory unitofwork.RepositoryFactory) *RepositoryIndex {
	return &RepositoryIndex{uowFactory: uowFactory}
}

func (r *RepositoryIndex) Search(ctx context.Context, ownerID uuid.UUID, vector []float32, limit int) ([]Item, error) {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.TurnEmbeddingRepository().SearchSimilar(ctx, vector, limit, ownerID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(scored))
	for i, s := range scored {
		items[i] = Item{
			TurnID:    s.TurnId,
			SessionID: s.SessionId,
			Role:      s.Role,
			Content:   s.Content,
			Distance:  s.Distance,
		}
	}
	return items, nil
}

func (r *RepositoryIndex) Put(ctx context.Context, doc Document, vector []float32) error {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	return uow.TurnEmbeddingRepository().Create(ctx, &entity.TurnEmbedding{
		TurnId: doc.TurnID,
		Value:  vector,
	})
}
