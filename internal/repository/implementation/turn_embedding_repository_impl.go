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
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TurnEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TurnEmbeddingMapper
}

func NewTurnEmbeddingRepository(db *gorm.DB) contract.TurnEmbeddingRepository {
	return &TurnEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewTurnEmbeddingMapper(),
	}
}

func (r *TurnEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TurnEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.TurnEmbedding) error {
	m := r.mapper.ToModel(embedding)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "turn_id"}}, DoNothing: true}).
		Create(m).Error
	if err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *TurnEmbeddingRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TurnEmbedding, error) {
	var m model.TurnEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TurnEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.TurnEmbedding{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

// SearchSimilar ranks every embedded turn of the owner's sessions by cosine distance.
func (r *TurnEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, ownerId uuid.UUID) ([]*entity.ScoredTurn, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		TurnId    uuid.UUID
		SessionId uuid.UUID
		Role      string
		Content   string
		Distance  float64
	}
	var results []result

	// pgvector cosine distance: embedding_value <=> query_vector
	err := r.db.WithContext(ctx).
		Table("turn_embeddings").
		Select("intake_turns.id AS turn_id, intake_turns.session_id, intake_turns.role, intake_turns.content, turn_embeddings.embedding_value <=> ? AS distance", pgvector.NewVector(embedding)).
		Joins("JOIN intake_turns ON intake_turns.id = turn_embeddings.turn_id").
		Joins("JOIN intake_sessions ON intake_sessions.id = intake_turns.session_id").
		Where("intake_sessions.owner_id = ?", ownerId).
		Order("distance ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredTurn, len(results))
	for i, res := range results {
		scored[i] = &entity.ScoredTurn{
			TurnId:    res.TurnId,
			SessionId: res.SessionId,
			Role:      res.Role,
			Content:   res.Content,
			Distance:  res.Distance,
		}
	}
	return scored, nil
}
