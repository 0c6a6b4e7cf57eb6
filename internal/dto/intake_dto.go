package dto

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated caller as resolved by the JWT middleware.
type Identity struct {
	UserId uuid.UUID
	Role   string
}

type CreateSessionRequest struct {
	ReviewerId *uuid.UUID `json:"reviewer_id,omitempty"`
}

type SessionResponse struct {
	Id         uuid.UUID  `json:"id"`
	OwnerId    uuid.UUID  `json:"owner_id"`
	ReviewerId *uuid.UUID `json:"reviewer_id,omitempty"`
	Title      string     `json:"title"`
	TurnCount  int64      `json:"turn_count"`
	HasSummary bool       `json:"has_summary"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type TurnResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	Turns   []*TurnResponse  `json:"turns"`
	Summary *SummaryResponse `json:"summary"`
}

type SendTurnRequest struct {
	SessionId *uuid.UUID `json:"session_id,omitempty"`
	Message   string     `json:"message" validate:"required,notblank"`
}

type SummaryResponse struct {
	SessionId   uuid.UUID         `json:"session_id"`
	Summary     string            `json:"summary"`
	Sections    map[string]string `json:"sections"`
	SafetyFlags *string           `json:"safety_flags"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ReviewerAlert is pushed to an assigned reviewer over the alert websocket.
type ReviewerAlert struct {
	Type       string    `json:"type"`
	SessionId  uuid.UUID `json:"session_id"`
	Title      string    `json:"title"`
	Flagged    bool      `json:"flagged,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
