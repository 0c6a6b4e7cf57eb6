package contract

import (
	"context"
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"

	"github.com/google/uuid"
)

type IntakeSessionRepository interface {
	Create(ctx context.Context, session *entity.IntakeSession) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.IntakeSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.IntakeSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
