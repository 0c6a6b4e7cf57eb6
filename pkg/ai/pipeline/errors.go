package pipeline

import (
	"errors"
	"fmt"

	"clinical-intake-be/pkg/rag/retrieval"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrValidation rejects a request before any side effect.
	ErrValidation = errors.New("invalid turn request")
	// ErrProvider is a failed or empty model call.
	ErrProvider = errors.New("model provider failed")
	// ErrPersistence is a failed write or read of turns and summaries.
	ErrPersistence = errors.New("turn persistence failed")
	// ErrFinalization wraps background summarization failures. It is logged, never returned to a turn.
	ErrFinalization = errors.New("session finalization failed")
	// ErrTurnInProgress is returned when another turn holds the session lock.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
	// ErrNothingToSummarize is returned when a summary is requested for an empty session.
	ErrNothingToSummarize = errors.New("session has no turns to summarize")
	// ErrRetrievalDegraded is only ever logged. Retrieval falls back to empty context.
	ErrRetrievalDegraded = retrieval.ErrDegraded
)

// classify tags cause with one of the sentinels above so callers can use errors.Is on both.
func classify(kind, cause error, msg string, values ...goerr.Option) error {
	return goerr.Wrap(fmt.Errorf("%w: %w", kind, cause), msg, values...)
}
