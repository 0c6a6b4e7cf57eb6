package model

import (
	"time"

	"github.com/google/uuid"
)

type Turn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;index:idx_turn_session_created,priority:1"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_turn_session_created,priority:2"`
}

func (Turn) TableName() string {
	return "intake_turns"
}
