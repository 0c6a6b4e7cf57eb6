package pipeline

import (
	"context"
	"strings"
	"time"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/events"
	"clinical-intake-be/pkg/llm"
	"clinical-intake-be/pkg/rag/history"
	"clinical-intake-be/pkg/rag/prompt"
	"clinical-intake-be/pkg/safety"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Finalizer turns a finished session transcript into a stored clinical summary.
type Finalizer struct {
	turns         TurnStore
	summaries     SummaryStore
	model         llm.LLMProvider
	events        EventPublisher
	logger        logger.ILogger
	modelTimeout  time.Duration
	onModelMarker bool
	clock         func() time.Time
}

type FinalizerConfig struct {
	ModelTimeout time.Duration
	// OnModelMarker also finalizes when the model writes its closing summary marker.
	OnModelMarker bool
}

func NewFinalizer(turns TurnStore, summaries SummaryStore, model llm.LLMProvider, publisher EventPublisher, log logger.ILogger, cfg FinalizerConfig) *Finalizer {
	return &Finalizer{
		turns:         turns,
		summaries:     summaries,
		model:         model,
		events:        publisher,
		logger:        log,
		modelTimeout:  cfg.ModelTimeout,
		onModelMarker: cfg.OnModelMarker,
		clock:         time.Now,
	}
}

// ShouldFinalize is evaluated once per turn.
func (f *Finalizer) ShouldFinalize(userText, assistantText string) bool {
	if strings.Contains(strings.ToLower(userText), constant.EndSessionPhrase) {
		return true
	}
	return f.onModelMarker && strings.Contains(strings.ToLower(assistantText), constant.ModelClosingMarker)
}

// Finalize summarizes the full transcript and upserts the single summary row of the session.
func (f *Finalizer) Finalize(ctx context.Context, sessionID uuid.UUID) (*entity.SessionSummary, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Finalize", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer span.End()

	turns, err := f.turns.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, classify(ErrPersistence, err, "failed to load transcript", goerr.V("session_id", sessionID))
	}
	if len(turns) == 0 {
		return nil, goerr.Wrap(ErrNothingToSummarize, "cannot finalize session", goerr.V("session_id", sessionID))
	}

	modelCtx := ctx
	if f.modelTimeout > 0 {
		var cancel context.CancelFunc
		modelCtx, cancel = context.WithTimeout(ctx, f.modelTimeout)
		defer cancel()
	}

	text, err := f.model.Generate(modelCtx, prompt.SummaryPrompt(history.Transcript(turns)))
	if err != nil {
		return nil, classify(ErrProvider, err, "summary generation failed", goerr.V("session_id", sessionID))
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(ErrProvider, "summary generation returned no text", goerr.V("session_id", sessionID))
	}

	summary := &entity.SessionSummary{
		SessionId: sessionID,
		Summary:   text,
		Sections:  ParseSections(text),
	}
	// The gate and this scan are separate signals: the model may cite the crisis line on its own.
	if history.AnyAssistantContains(turns, safety.CrisisResourceMarker) {
		flag := constant.SafetyFlagCrisisDetected
		summary.SafetyFlags = &flag
	}

	if err := f.summaries.UpsertSummary(ctx, summary); err != nil {
		return nil, classify(ErrPersistence, err, "failed to store summary", goerr.V("session_id", sessionID))
	}
	span.SetAttributes(attribute.Bool("summary.flagged", summary.IsFlagged()))

	f.logger.Info("FINALIZER", "Session summary stored", map[string]interface{}{
		"session_id": sessionID.String(),
		"turns":      len(turns),
		"flagged":    summary.IsFlagged(),
	})

	if f.events != nil {
		event := events.NewSessionSummarized(sessionID, summary.IsFlagged(), f.clock())
		if err := f.events.Publish(ctx, event); err != nil {
			f.logger.Warn("FINALIZER", "Failed to publish summary event", logger.ErrorDetails(err, map[string]interface{}{
				"session_id": sessionID.String(),
			}))
		}
	}

	return summary, nil
}
