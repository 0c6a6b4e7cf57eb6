package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"clinical-intake-be/internal/dto"
	"clinical-intake-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, userID uuid.UUID) *Client {
	t.Helper()
	client := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.Connected(userID) > 0 }, time.Second, 5*time.Millisecond)
	return client
}

func TestHub_SendReachesOnlyTargetReviewer(t *testing.T) {
	hub := startHub(t)
	reviewer, other := uuid.New(), uuid.New()
	target := connect(t, hub, reviewer)
	bystander := connect(t, hub, other)

	sessionID := uuid.New()
	hub.Send(reviewer, dto.ReviewerAlert{Type: "CRISIS_DETECTED", SessionId: sessionID, Flagged: true})

	select {
	case raw := <-target.Send:
		var frame struct {
			Type string            `json:"type"`
			Data dto.ReviewerAlert `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, "reviewer_alert", frame.Type)
		assert.Equal(t, sessionID, frame.Data.SessionId)
		assert.True(t, frame.Data.Flagged)
	case <-time.After(time.Second):
		t.Fatal("alert not delivered")
	}
	assert.Empty(t, bystander.Send)
	assert.Equal(t, 2, hub.Connections())
}

func TestHub_ClusterMessagesFromSelfAreIgnored(t *testing.T) {
	hub := startHub(t)
	reviewer := uuid.New()
	client := connect(t, hub, reviewer)

	own, _ := json.Marshal(clusterEnvelope{Origin: hub.instanceID, TargetUserID: reviewer.String(), Message: json.RawMessage(`{"a":1}`)})
	hub.handleClusterMessage(own)
	assert.Empty(t, client.Send)

	foreign, _ := json.Marshal(clusterEnvelope{Origin: "other-instance", TargetUserID: reviewer.String(), Message: json.RawMessage(`{"a":2}`)})
	hub.handleClusterMessage(foreign)
	require.Len(t, client.Send, 1)
	assert.JSONEq(t, `{"a":2}`, string(<-client.Send))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	reviewer := uuid.New()
	client := connect(t, hub, reviewer)

	hub.leave(client)
	require.Eventually(t, func() bool { return hub.Connected(reviewer) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open)
}
