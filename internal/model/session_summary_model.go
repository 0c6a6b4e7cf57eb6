package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionSummary struct {
	Id          uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	Summary     string            `gorm:"type:text;not null"`
	Sections    datatypes.JSONMap `gorm:"type:jsonb"`
	SafetyFlags *string           `gorm:"type:text"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

func (SessionSummary) TableName() string {
	return "session_summaries"
}
