package implementation

import (
	"context"
	"errors"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/mapper"
	"clinical-intake-be/internal/model"
	"clinical-intake-be/internal/repository/contract"
	"clinical-intake-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionSummaryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.IntakeMapper
}

func NewSessionSummaryRepository(db *gorm.DB) contract.SessionSummaryRepository {
	return &SessionSummaryRepositoryImpl{
		db:     db,
		mapper: mapper.NewIntakeMapper(),
	}
}

func (r *SessionSummaryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionSummaryRepositoryImpl) Upsert(ctx context.Context, summary *entity.SessionSummary) error {
	m := r.mapper.SummaryToModel(summary)
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary", "sections", "safety_flags", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}

	// On conflict the stored row keeps its original id and created_at.
	stored, err := r.FindOne(ctx, specification.BySessionID{SessionID: summary.SessionId})
	if err != nil {
		return err
	}
	if stored != nil {
		*summary = *stored
	}
	return nil
}

func (r *SessionSummaryRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SessionSummary, error) {
	var m model.SessionSummary
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SummaryToEntity(&m), nil
}

func (r *SessionSummaryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SessionSummary, error) {
	var models []*model.SessionSummary
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.SessionSummary, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SummaryToEntity(m)
	}
	return entities, nil
}
