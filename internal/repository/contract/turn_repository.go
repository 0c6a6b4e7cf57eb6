package contract

import (
	"context"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"
)

// TurnRepository is append-only. Turns are never updated or deleted.
type TurnRepository interface {
	Create(ctx context.Context, turn *entity.Turn) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
