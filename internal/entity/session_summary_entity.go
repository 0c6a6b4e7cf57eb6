package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionSummary struct {
	Id          uuid.UUID
	SessionId   uuid.UUID
	Summary     string
	Sections    map[string]string
	SafetyFlags *string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

func (s *SessionSummary) IsFlagged() bool {
	return s.SafetyFlags != nil
}
