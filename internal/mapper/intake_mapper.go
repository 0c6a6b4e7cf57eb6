package mapper

import (
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/model"

	"gorm.io/datatypes"
)

type IntakeMapper struct{}

func NewIntakeMapper() *IntakeMapper {
	return &IntakeMapper{}
}

// Session Mappers

func (m *IntakeMapper) SessionToEntity(s *model.IntakeSession) *entity.IntakeSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.IntakeSession{
		Id:         s.Id,
		OwnerId:    s.OwnerId,
		ReviewerId: s.ReviewerId,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func (m *IntakeMapper) SessionToModel(s *entity.IntakeSession) *model.IntakeSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.IntakeSession{
		Id:         s.Id,
		OwnerId:    s.OwnerId,
		ReviewerId: s.ReviewerId,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

// Turn Mappers

func (m *IntakeMapper) TurnToEntity(t *model.Turn) *entity.Turn {
	if t == nil {
		return nil
	}
	return &entity.Turn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
}

func (m *IntakeMapper) TurnToModel(t *entity.Turn) *model.Turn {
	if t == nil {
		return nil
	}
	return &model.Turn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Role:      t.Role,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
}

func (m *IntakeMapper) TurnsToEntities(turns []*model.Turn) []*entity.Turn {
	entities := make([]*entity.Turn, len(turns))
	for i, t := range turns {
		entities[i] = m.TurnToEntity(t)
	}
	return entities
}

// Summary Mappers

func (m *IntakeMapper) SummaryToEntity(s *model.SessionSummary) *entity.SessionSummary {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	sections := make(map[string]string, len(s.Sections))
	for k, v := range s.Sections {
		if str, ok := v.(string); ok {
			sections[k] = str
		}
	}

	return &entity.SessionSummary{
		Id:          s.Id,
		SessionId:   s.SessionId,
		Summary:     s.Summary,
		Sections:    sections,
		SafetyFlags: s.SafetyFlags,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *IntakeMapper) SummaryToModel(s *entity.SessionSummary) *model.SessionSummary {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	sections := datatypes.JSONMap{}
	for k, v := range s.Sections {
		sections[k] = v
	}

	return &model.SessionSummary{
		Id:          s.Id,
		SessionId:   s.SessionId,
		Summary:     s.Summary,
		Sections:    sections,
		SafetyFlags: s.SafetyFlags,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}
