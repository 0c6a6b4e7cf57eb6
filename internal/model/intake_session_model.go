package model

import (
	"time"

	"github.com/google/uuid"
)

type IntakeSession struct {
	Id         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId    uuid.UUID  `gorm:"type:uuid;not null;index"` // patient, used for retrieval isolation
	ReviewerId *uuid.UUID `gorm:"type:uuid;index"`
	Title      string     `gorm:"type:text;not null"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

func (IntakeSession) TableName() string {
	return "intake_sessions"
}
