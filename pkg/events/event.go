package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeCrisisDetected    = "CRISIS_DETECTED"
	TypeSessionSummarized = "SESSION_SUMMARIZED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CRISIS_DETECTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// SessionID reads the session id carried by intake events.
func (e BaseEvent) SessionID() (uuid.UUID, bool) {
	raw, ok := e.Data["session_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// NewCrisisDetected is raised when the safety gate overrides a turn.
// The matched phrase is deliberately not included.
func NewCrisisDetected(sessionID, ownerID uuid.UUID, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeCrisisDetected,
		Data: map[string]interface{}{
			"session_id":  sessionID.String(),
			"owner_id":    ownerID.String(),
			"occurred_at": at.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}

// NewSessionSummarized is raised after a summary is stored.
func NewSessionSummarized(sessionID uuid.UUID, flagged bool, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeSessionSummarized,
		Data: map[string]interface{}{
			"session_id":  sessionID.String(),
			"flagged":     flagged,
			"occurred_at": at.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}
