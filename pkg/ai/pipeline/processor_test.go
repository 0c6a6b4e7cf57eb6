package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/internal/repository/memory"
	"clinical-intake-be/pkg/embedding"
	"clinical-intake-be/pkg/events"
	"clinical-intake-be/pkg/llm"
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/safety"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_CrisisBypassesModel(t *testing.T) {
	h := newHarness()

	result, err := h.send("I want to end my life")
	require.NoError(t, err)

	assert.True(t, result.Crisis)
	assert.Equal(t, safety.Message, result.Reply)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, h.model.calls())
	assert.Equal(t, 0, h.retriever.calls)
	assert.Equal(t, 0, h.queue.count())

	stored := h.turns.stored(h.sessionID)
	require.Len(t, stored, 2)
	assert.Equal(t, constant.TurnRoleUser, stored[0].Role)
	assert.Equal(t, "I want to end my life", stored[0].Content)
	assert.Equal(t, constant.TurnRoleAssistant, stored[1].Role)
	assert.Equal(t, safety.Message, stored[1].Content)

	assert.Equal(t, []string{events.TypeCrisisDetected}, h.publisher.types())
}

func TestProcess_EveryCrisisPhraseInAnyCaseSkipsModel(t *testing.T) {
	for _, phrase := range safety.Phrases() {
		for _, variant := range []string{phrase, strings.ToUpper(phrase), "lately I " + alternateCase(phrase) + " a lot"} {
			h := newHarness()
			result, err := h.send(variant)
			require.NoError(t, err, variant)
			assert.True(t, result.Crisis, variant)
			assert.Equal(t, 0, h.model.calls(), variant)
		}
	}
}

func TestProcess_CrisisReturnsMessageWhenStorageFails(t *testing.T) {
	h := newHarness()
	h.turns.failRole[constant.TurnRoleUser] = errStorageDown
	h.turns.failRole[constant.TurnRoleAssistant] = errStorageDown
	h.turns.countErr = errStorageDown

	result, err := h.send("I have thought about suicide")
	require.NoError(t, err)
	assert.Equal(t, safety.Message, result.Reply)
	assert.Nil(t, result.UserTurn)
	assert.Nil(t, result.AssistantTurn)
	assert.Equal(t, 0, h.model.calls())
}

func TestProcess_CrisisOnFirstTurnNamesSession(t *testing.T) {
	h := newHarness()

	result, err := h.send("I want to die")
	require.NoError(t, err)
	assert.Equal(t, "I want to die", result.Title)
	assert.Equal(t, "I want to die", h.turns.titles[h.sessionID])
}

func TestProcess_SafePathOrder(t *testing.T) {
	h := newHarness()

	result, err := h.send("I have been sleeping badly")
	require.NoError(t, err)

	assert.False(t, result.Crisis)
	assert.Equal(t, h.model.reply, result.Reply)
	assert.Equal(t, []string{
		"count",
		"retrieve",
		"create:" + constant.TurnRoleUser,
		"list",
		"model",
		"create:" + constant.TurnRoleAssistant,
	}, h.steps.all())

	stored := h.turns.stored(h.sessionID)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].CreatedAt.Before(stored[1].CreatedAt))
}

func TestProcess_ContextAndHistoryReachModel(t *testing.T) {
	h := newHarness()
	h.retriever.items = []retrieval.Item{{Role: constant.TurnRoleUser, Content: "My brother passed away last year"}}

	_, err := h.send("first message")
	require.NoError(t, err)
	_, err = h.send("second message")
	require.NoError(t, err)

	history := h.model.lastHistory
	require.Len(t, history, 4)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, constant.ContextBlockHeader)
	assert.Contains(t, history[0].Content, "[user]: My brother passed away last year")
	assert.Equal(t, "first message", history[1].Content)
	assert.Equal(t, llm.RoleAssistant, history[2].Role)
	assert.Equal(t, "second message", history[3].Content)
}

func TestProcess_NoContextBlockWhenEmpty(t *testing.T) {
	h := newHarness()

	_, err := h.send("hello")
	require.NoError(t, err)
	assert.NotContains(t, h.model.lastHistory[0].Content, constant.ContextBlockHeader)
}

type downEmbedder struct{}

func (downEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return nil, errors.New("provider unreachable")
}

func TestProcess_RetrievalOutageDegradesToEmptyContext(t *testing.T) {
	store := retrieval.NewStore(downEmbedder{}, memory.NewEmbeddingIndex(), logger.NewNopLogger(), time.Second, 3)
	h := newHarness(func(d *Dependencies, _ *FinalizerConfig) {
		d.Retriever = store
	})

	result, err := h.send("I feel anxious before meetings")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ContextItems)
	assert.NotContains(t, h.model.lastHistory[0].Content, constant.ContextBlockHeader)
	assert.Len(t, h.turns.stored(h.sessionID), 2)
}

func TestProcess_UserTurnPersistenceFailureAbortsBeforeModel(t *testing.T) {
	h := newHarness()
	h.turns.failRole[constant.TurnRoleUser] = errStorageDown

	_, err := h.send("hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errStorageDown)
	assert.Equal(t, 0, h.model.calls())
	assert.Equal(t, 0, h.queue.count())
}

func TestProcess_AssistantTurnPersistenceFailureSurfaces(t *testing.T) {
	h := newHarness()
	h.turns.failRole[constant.TurnRoleAssistant] = errStorageDown
	sink := &recordingSink{}

	_, err := h.processor.Process(context.Background(), TurnRequest{
		SessionID: h.sessionID,
		OwnerID:   h.ownerID,
		Message:   "hello",
	}, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 1, h.model.calls())
	assert.Equal(t, h.model.reply, strings.Join(sink.chunks, ""))
	assert.Equal(t, 1, h.queue.count())
}

func TestProcess_ProviderFailure(t *testing.T) {
	h := newHarness()
	h.model.streamErr = errors.New("503 from provider")

	_, err := h.send("hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)

	stored := h.turns.stored(h.sessionID)
	require.Len(t, stored, 1)
	assert.Equal(t, constant.TurnRoleUser, stored[0].Role)
}

func TestProcess_EmptyReplyIsProviderError(t *testing.T) {
	h := newHarness()
	h.model.reply = "  "

	_, err := h.send("hello")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestProcess_Validation(t *testing.T) {
	h := newHarness()

	cases := []TurnRequest{
		{OwnerID: h.ownerID, Message: "hi"},
		{SessionID: h.sessionID, Message: "hi"},
		{SessionID: h.sessionID, OwnerID: h.ownerID, Message: "   "},
	}
	for _, req := range cases {
		_, err := h.processor.Process(context.Background(), req, nil)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, h.steps.all())
}

func TestProcess_TitleBoundary(t *testing.T) {
	exact := strings.Repeat("a", 60)
	over := strings.Repeat("b", 61)

	h := newHarness()
	_, err := h.send(exact)
	require.NoError(t, err)
	assert.Equal(t, exact, h.turns.titles[h.sessionID])

	h = newHarness()
	_, err = h.send(over)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 60)+"...", h.turns.titles[h.sessionID])
}

func TestProcess_TitleSetOnlyOnFirstTurn(t *testing.T) {
	h := newHarness()

	first, err := h.send("first")
	require.NoError(t, err)
	second, err := h.send("second")
	require.NoError(t, err)

	assert.Equal(t, "first", first.Title)
	assert.Empty(t, second.Title)
	assert.Equal(t, 1, h.turns.titleCalls)
	assert.Equal(t, "first", h.turns.titles[h.sessionID])
}

func TestProcess_EnqueuesBothTurns(t *testing.T) {
	h := newHarness()

	result, err := h.send("hello")
	require.NoError(t, err)

	require.Equal(t, 2, h.queue.count())
	assert.Equal(t, result.UserTurn.Id, h.queue.docs[0].TurnID)
	assert.Equal(t, result.AssistantTurn.Id, h.queue.docs[1].TurnID)
	for _, doc := range h.queue.docs {
		assert.Equal(t, h.ownerID, doc.OwnerID)
		assert.Equal(t, h.sessionID, doc.SessionID)
	}
	assert.Equal(t, StateDone, result.State)
}

func TestProcess_SinkFailureStillPersists(t *testing.T) {
	h := newHarness()
	h.model.reply = "one two three four"
	sink := &recordingSink{failAt: 2}

	result, err := h.processor.Process(context.Background(), TurnRequest{
		SessionID: h.sessionID,
		OwnerID:   h.ownerID,
		Message:   "hello",
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, 2, sink.writes)
	assert.Equal(t, []string{"one "}, sink.chunks)
	assert.Equal(t, "one two three four", result.AssistantTurn.Content)
}

func TestProcess_CancelledCallerStillCompletes(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.processor.Process(ctx, TurnRequest{
		SessionID: h.sessionID,
		OwnerID:   h.ownerID,
		Message:   "hello",
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, result.AssistantTurn)
}

func TestProcess_BusySessionRejected(t *testing.T) {
	locks := memory.NewSessionLockRepository(time.Minute)
	h := newHarness(func(d *Dependencies, _ *FinalizerConfig) {
		d.Locker = locks
	})

	release, ok := locks.TryLock(h.sessionID)
	require.True(t, ok)

	_, err := h.send("hello")
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.Equal(t, 0, h.model.calls())

	release()
	_, err = h.send("hello")
	assert.NoError(t, err)
}

func TestProcess_CrisisAnsweredWhileSessionBusy(t *testing.T) {
	locks := memory.NewSessionLockRepository(time.Minute)
	h := newHarness(func(d *Dependencies, _ *FinalizerConfig) {
		d.Locker = locks
	})

	release, ok := locks.TryLock(h.sessionID)
	require.True(t, ok)
	defer release()

	result, err := h.send("I want to end my life")
	require.NoError(t, err)
	assert.True(t, result.Crisis)
	assert.Equal(t, safety.Message, result.Reply)
	assert.Equal(t, 0, h.model.calls())

	// stored best-effort even though another turn holds the lock
	assert.Len(t, h.turns.stored(h.sessionID), 2)

	// the held lock is untouched
	_, ok = locks.TryLock(h.sessionID)
	assert.False(t, ok)
}

func TestProcess_TurnsKeepSubmissionOrder(t *testing.T) {
	h := newHarness()
	for _, msg := range []string{"t1", "t2", "t3"} {
		_, err := h.send(msg)
		require.NoError(t, err)
	}

	var users []string
	for _, turn := range h.turns.stored(h.sessionID) {
		if turn.Role == constant.TurnRoleUser {
			users = append(users, turn.Content)
		}
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, users)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CRISIS_PATH", StateCrisisPath.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestErrorsAreDistinguishable(t *testing.T) {
	err := classify(ErrProvider, errors.New("timeout"), "model call failed")
	assert.ErrorIs(t, err, ErrProvider)
	assert.False(t, errors.Is(err, ErrPersistence))
	assert.ErrorIs(t, ErrRetrievalDegraded, retrieval.ErrDegraded)
}

func alternateCase(s string) string {
	out := []rune(s)
	for i, r := range out {
		if i%2 == 0 {
			out[i] = []rune(strings.ToUpper(string(r)))[0]
		}
	}
	return string(out)
}
