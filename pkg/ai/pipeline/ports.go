package pipeline

import (
	"context"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/pkg/events"
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/utils/async"

	"github.com/google/uuid"
)

// TurnStore is the durable turn log. CreateTurn also refreshes the session's updated_at.
type TurnStore interface {
	CreateTurn(ctx context.Context, sessionID uuid.UUID, role, content string) (*entity.Turn, error)
	ListTurns(ctx context.Context, sessionID uuid.UUID) ([]*entity.Turn, error)
	CountTurns(ctx context.Context, sessionID uuid.UUID) (int64, error)
	UpdateSessionTitle(ctx context.Context, sessionID uuid.UUID, title string) error
}

type SummaryStore interface {
	UpsertSummary(ctx context.Context, summary *entity.SessionSummary) error
}

// ContextRetriever returns the owner's nearest prior turns. It never fails.
type ContextRetriever interface {
	Retrieve(ctx context.Context, ownerID uuid.UUID, text string, limit int) []retrieval.Item
}

// EmbeddingQueue accepts persisted turns for write-behind embedding. Delivery is at most once.
type EmbeddingQueue interface {
	Enqueue(ctx context.Context, doc retrieval.Document)
}

type Executor interface {
	Go(ctx context.Context, name string, task async.Task)
}

// Sink receives the streamed reply. A write error means the client is gone.
type Sink interface {
	Write(chunk string) error
}

type SessionLocker interface {
	TryLock(sessionID uuid.UUID) (release func(), ok bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(chunk string) error

func (f SinkFunc) Write(chunk string) error {
	return f(chunk)
}
