package contract

import (
	"context"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"
)

type SessionSummaryRepository interface {
	// Upsert keeps exactly one summary per session.
	Upsert(ctx context.Context, summary *entity.SessionSummary) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SessionSummary, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SessionSummary, error)
}
