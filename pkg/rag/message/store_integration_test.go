package message_test

import (
	"context"
	"os"
	"testing"
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/unitofwork"
	"clinical-intake-be/pkg/database"
	"clinical-intake-be/pkg/rag/message"
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/rag/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres with pgvector. Skipped unless DB_CONNECTION_STRING is set.
func setupStore(t *testing.T) (*message.Store, unitofwork.RepositoryFactory) {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := database.NewGormDBFromDSN(dsn, true)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	factory := unitofwork.NewRepositoryFactory(db)
	return message.NewStore(factory), factory
}

func newSession(t *testing.T, factory unitofwork.RepositoryFactory, owner uuid.UUID) *entity.IntakeSession {
	t.Helper()
	ctx := context.Background()
	sess, err := session.NewManager().Create(ctx, factory.NewUnitOfWork(ctx), owner, nil)
	require.NoError(t, err)
	return sess
}

func unitVector(hot int) []float32 {
	v := make([]float32, 768)
	v[hot] = 1
	return v
}

func TestStore_TurnsComeBackInCreationOrder(t *testing.T) {
	store, factory := setupStore(t)
	ctx := context.Background()
	sess := newSession(t, factory, uuid.New())

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		_, err := store.CreateTurn(ctx, sess.Id, role, c)
		require.NoError(t, err)
	}

	turns, err := store.ListTurns(ctx, sess.Id)
	require.NoError(t, err)
	require.Len(t, turns, len(contents))
	for i, turn := range turns {
		assert.Equal(t, contents[i], turn.Content)
		if i > 0 {
			assert.True(t, turn.CreatedAt.After(turns[i-1].CreatedAt))
		}
	}

	count, err := store.CountTurns(ctx, sess.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	reloaded, err := store.FindSession(ctx, sess.Id)
	require.NoError(t, err)
	require.NotNil(t, reloaded.UpdatedAt)
	assert.False(t, reloaded.UpdatedAt.Before(turns[3].CreatedAt.Add(-time.Second)))
}

func TestStore_CreateTurnUnknownSession(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.CreateTurn(context.Background(), uuid.New(), "user", "hello")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStore_UpsertSummaryKeepsOneRow(t *testing.T) {
	store, factory := setupStore(t)
	ctx := context.Background()
	sess := newSession(t, factory, uuid.New())

	_, err := store.FindSummary(ctx, sess.Id)
	require.ErrorIs(t, err, message.ErrSummaryNotFound)

	first := &entity.SessionSummary{SessionId: sess.Id, Summary: "v1", Sections: map[string]string{"overview": "a"}}
	require.NoError(t, store.UpsertSummary(ctx, first))

	flag := "crisis language observed"
	second := &entity.SessionSummary{SessionId: sess.Id, Summary: "v2", Sections: map[string]string{"overview": "b"}, SafetyFlags: &flag}
	require.NoError(t, store.UpsertSummary(ctx, second))

	assert.Equal(t, first.Id, second.Id)

	stored, err := store.FindSummary(ctx, sess.Id)
	require.NoError(t, err)
	assert.Equal(t, "v2", stored.Summary)
	assert.Equal(t, "b", stored.Sections["overview"])
	assert.True(t, stored.IsFlagged())
}

func TestRepositoryIndex_SearchIsOwnerScoped(t *testing.T) {
	store, factory := setupStore(t)
	ctx := context.Background()
	index := retrieval.NewRepositoryIndex(factory)

	alice, bob := uuid.New(), uuid.New()
	aliceSess := newSession(t, factory, alice)
	bobSess := newSession(t, factory, bob)

	aliceTurn, err := store.CreateTurn(ctx, aliceSess.Id, "user", "I sleep badly")
	require.NoError(t, err)
	bobTurn, err := store.CreateTurn(ctx, bobSess.Id, "user", "I sleep badly too")
	require.NoError(t, err)

	require.NoError(t, index.Put(ctx, retrieval.Document{TurnID: aliceTurn.Id, SessionID: aliceSess.Id, OwnerID: alice}, unitVector(0)))
	require.NoError(t, index.Put(ctx, retrieval.Document{TurnID: bobTurn.Id, SessionID: bobSess.Id, OwnerID: bob}, unitVector(0)))
	// duplicate embedding for the same turn is ignored
	require.NoError(t, index.Put(ctx, retrieval.Document{TurnID: aliceTurn.Id, SessionID: aliceSess.Id, OwnerID: alice}, unitVector(1)))

	items, err := index.Search(ctx, alice, unitVector(0), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, aliceTurn.Id, items[0].TurnID)
	assert.InDelta(t, 0, items[0].Distance, 1e-6)
}
