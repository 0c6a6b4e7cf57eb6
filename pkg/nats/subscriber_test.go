package nats

import (
	"encoding/json"
	"testing"
	"time"

	"clinical-intake-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_RoundTripsPublishedPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := events.NewCrisisDetected(uuid.New(), uuid.New(), at)

	data, err := json.Marshal(original.Payload())
	require.NoError(t, err)

	decoded, err := DecodeEvent(Subject(original.EventType()), data)
	require.NoError(t, err)

	assert.Equal(t, events.TypeCrisisDetected, decoded.EventType())
	assert.True(t, at.Equal(decoded.Timestamp()))
	assert.Equal(t, original.Payload()["session_id"], decoded.Payload()["session_id"])
}

func TestDecodeEvent_BadPayload(t *testing.T) {
	_, err := DecodeEvent("intake.X", []byte("{"))
	assert.Error(t, err)
}
