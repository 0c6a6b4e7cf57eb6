package contract

import (
	"context"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TurnEmbeddingRepository interface {
	// Create ignores a second embedding for the same turn.
	Create(ctx context.Context, embedding *entity.TurnEmbedding) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TurnEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int, ownerId uuid.UUID) ([]*entity.ScoredTurn, error)
}
