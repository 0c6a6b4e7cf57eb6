package entity

import (
	"time"

	"github.com/google/uuid"
)

type TurnEmbedding struct {
	Id        uuid.UUID
	TurnId    uuid.UUID
	Value     []float32
	CreatedAt time.Time
}

// ScoredTurn is a turn returned by similarity search, closest first.
type ScoredTurn struct {
	TurnId    uuid.UUID
	SessionId uuid.UUID
	Role      string
	Content   string
	Distance  float64
}
