package unitofwork

import (
	"context"

	"clinical-intake-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	IntakeSessionRepository() contract.IntakeSessionRepository
	TurnRepository() contract.TurnRepository
	TurnEmbeddingRepository() contract.TurnEmbeddingRepository
	SessionSummaryRepository() contract.SessionSummaryRepository
}
