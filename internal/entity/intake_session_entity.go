package entity

import (
	"time"

	"github.com/google/uuid"
)

type IntakeSession struct {
	Id         uuid.UUID
	OwnerId    uuid.UUID
	ReviewerId *uuid.UUID
	Title      string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

func (s *IntakeSession) IsOwnedBy(userId uuid.UUID) bool {
	return s.OwnerId == userId
}

func (s *IntakeSession) IsReviewedBy(userId uuid.UUID) bool {
	return s.ReviewerId != nil && *s.ReviewerId == userId
}
