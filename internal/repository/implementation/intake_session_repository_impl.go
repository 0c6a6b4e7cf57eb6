package implementation

import (
	"context"
	"errors"
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/mapper"
	"clinical-intake-be/internal/model"
	"clinical-intake-be/internal/repository/contract"
	"clinical-intake-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IntakeSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.IntakeMapper
}

func NewIntakeSessionRepository(db *gorm.DB) contract.IntakeSessionRepository {
	return &IntakeSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewIntakeMapper(),
	}
}

func (r *IntakeSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *IntakeSessionRepositoryImpl) Create(ctx context.Context, session *entity.IntakeSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *IntakeSessionRepositoryImpl) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	return r.db.WithContext(ctx).
		Model(&model.IntakeSession{}).
		Where("id = ?", id).
		Update("title", title).Error
}

func (r *IntakeSessionRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.IntakeSession{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

func (r *IntakeSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.IntakeSession, error) {
	var m model.IntakeSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *IntakeSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.IntakeSession, error) {
	var models []*model.IntakeSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.IntakeSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities, nil
}

func (r *IntakeSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.IntakeSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
