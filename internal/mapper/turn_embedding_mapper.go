package mapper

import (
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type TurnEmbeddingMapper struct{}

func NewTurnEmbeddingMapper() *TurnEmbeddingMapper {
	return &TurnEmbeddingMapper{}
}

func (m *TurnEmbeddingMapper) ToEntity(e *model.TurnEmbedding) *entity.TurnEmbedding {
	if e == nil {
		return nil
	}
	return &entity.TurnEmbedding{
		Id:        e.Id,
		TurnId:    e.TurnId,
		Value:     e.EmbeddingValue.Slice(),
		CreatedAt: e.CreatedAt,
	}
}

func (m *TurnEmbeddingMapper) ToModel(e *entity.TurnEmbedding) *model.TurnEmbedding {
	if e == nil {
		return nil
	}
	return &model.TurnEmbedding{
		Id:             e.Id,
		TurnId:         e.TurnId,
		EmbeddingValue: pgvector.NewVector(e.Value),
		CreatedAt:      e.CreatedAt,
	}
}
