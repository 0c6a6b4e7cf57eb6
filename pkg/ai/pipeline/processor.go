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
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/rag/session"
	"clinical-intake-be/pkg/safety"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clinical-intake-be/pipeline")

// State is the last stage a turn reached.
type State int

const (
	StateReceived State = iota
	StateSafetyChecked
	StateCrisisPath
	StateSafePath
	StateContextFetched
	StateModelInvoked
	StatePersisted
	StateEmbeddingQueued
	StateFinalizeChecked
	StateDone
)

var stateNames = [...]string{
	"RECEIVED",
	"SAFETY_CHECKED",
	"CRISIS_PATH",
	"SAFE_PATH",
	"CONTEXT_FETCHED",
	"MODEL_INVOKED",
	"PERSISTED",
	"EMBEDDING_QUEUED",
	"FINALIZE_CHECKED",
	"DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// TurnRequest is one inbound patient message. The session must already exist and belong to OwnerID.
type TurnRequest struct {
	SessionID uuid.UUID
	OwnerID   uuid.UUID
	Message   string
}

type TurnResult struct {
	SessionID     uuid.UUID
	Reply         string
	Crisis        bool
	UserTurn      *entity.Turn
	AssistantTurn *entity.Turn
	ContextItems  int
	// Title is set when this turn named the session.
	Title     string
	Finalized bool
	State     State
}

type Dependencies struct {
	Turns     TurnStore
	Retriever ContextRetriever
	Model     llm.LLMProvider
	Queue     EmbeddingQueue
	Executor  Executor
	Finalizer *Finalizer
	Logger    logger.ILogger
	// Locker and Events are optional.
	Locker SessionLocker
	Events EventPublisher
}

type Config struct {
	ContextLimit int
	ModelTimeout time.Duration
	SystemPrompt string
}

// Processor runs one conversation turn from safety screening to finalization.
type Processor struct {
	deps  Dependencies
	cfg   Config
	clock func() time.Time
}

func NewProcessor(deps Dependencies, cfg Config) *Processor {
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 5
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = constant.IntakeSystemPromptV1
	}
	return &Processor{
		deps:  deps,
		cfg:   cfg,
		clock: time.Now,
	}
}

// Process handles a turn. Reply chunks go to sink as the model streams them; sink may be nil.
// Once accepted, the turn runs to completion even if ctx is cancelled: only streaming stops.
func (p *Processor) Process(ctx context.Context, req TurnRequest, sink Sink) (*TurnResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// The gate overrides everything, including a busy session.
	crisis := safety.Evaluate(req.Message)

	if p.deps.Locker != nil {
		release, ok := p.deps.Locker.TryLock(req.SessionID)
		switch {
		case ok:
			defer release()
		case !crisis:
			return nil, goerr.Wrap(ErrTurnInProgress, "session is busy", goerr.V("session_id", req.SessionID))
		default:
			p.deps.Logger.Warn("PIPELINE", "Session busy, crisis turn proceeds without the turn lock", map[string]interface{}{
				"session_id": req.SessionID.String(),
			})
		}
	}

	work := context.WithoutCancel(ctx)
	work, span := tracer.Start(work, "pipeline.Process", trace.WithAttributes(
		attribute.String("session.id", req.SessionID.String()),
	))
	defer span.End()

	result := &TurnResult{SessionID: req.SessionID, State: StateSafetyChecked}
	span.SetAttributes(attribute.Bool("turn.crisis", crisis))

	var err error
	if crisis {
		err = p.processCrisis(work, req, result)
	} else {
		err = p.processSafe(work, req, sink, result)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		return nil, err
	}

	result.State = StateDone
	return result, nil
}

// processCrisis never calls the model and always answers with the safety message.
// Storage failures are logged only.
func (p *Processor) processCrisis(ctx context.Context, req TurnRequest, result *TurnResult) error {
	result.State = StateCrisisPath
	result.Crisis = true
	result.Reply = safety.Message

	first := p.isFirstTurn(ctx, req.SessionID)

	userTurn, err := p.deps.Turns.CreateTurn(ctx, req.SessionID, constant.TurnRoleUser, req.Message)
	if err != nil {
		p.logPersistence("crisis user turn", req.SessionID, err)
	} else {
		result.UserTurn = userTurn
		if first {
			result.Title = p.nameSession(ctx, req.SessionID, req.Message)
		}
	}

	safetyTurn, err := p.deps.Turns.CreateTurn(ctx, req.SessionID, constant.TurnRoleAssistant, safety.Message)
	if err != nil {
		p.logPersistence("safety message turn", req.SessionID, err)
	} else {
		result.AssistantTurn = safetyTurn
	}
	result.State = StatePersisted

	p.deps.Logger.Warn("PIPELINE", "Crisis language detected, model bypassed", map[string]interface{}{
		"session_id": req.SessionID.String(),
	})

	if p.deps.Events != nil {
		event := events.NewCrisisDetected(req.SessionID, req.OwnerID, p.clock())
		p.deps.Executor.Go(ctx, "publish-crisis", func(ctx context.Context) error {
			return p.deps.Events.Publish(ctx, event)
		})
	}

	p.checkFinalize(ctx, req, safety.Message, result)
	return nil
}

func (p *Processor) processSafe(ctx context.Context, req TurnRequest, sink Sink, result *TurnResult) error {
	result.State = StateSafePath

	first := p.isFirstTurn(ctx, req.SessionID)

	// Retrieval runs before the user turn is stored so the turn cannot match itself.
	items := p.deps.Retriever.Retrieve(ctx, req.OwnerID, req.Message, p.cfg.ContextLimit)
	result.ContextItems = len(items)
	result.State = StateContextFetched

	userTurn, err := p.deps.Turns.CreateTurn(ctx, req.SessionID, constant.TurnRoleUser, req.Message)
	if err != nil {
		return classify(ErrPersistence, err, "failed to store user turn", goerr.V("session_id", req.SessionID))
	}
	result.UserTurn = userTurn
	if first {
		result.Title = p.nameSession(ctx, req.SessionID, req.Message)
	}
	p.enqueue(ctx, req.OwnerID, userTurn)

	turns, err := p.deps.Turns.ListTurns(ctx, req.SessionID)
	if err != nil {
		return classify(ErrPersistence, err, "failed to load session history", goerr.V("session_id", req.SessionID))
	}
	messages := prompt.NewIntakeBuilder(p.cfg.SystemPrompt, items).Messages(history.ToMessages(turns))

	reply, err := p.invokeModel(ctx, req.SessionID, messages, sink)
	if err != nil {
		return err
	}
	result.Reply = reply
	result.State = StateModelInvoked

	assistantTurn, err := p.deps.Turns.CreateTurn(ctx, req.SessionID, constant.TurnRoleAssistant, reply)
	if err != nil {
		return classify(ErrPersistence, err, "failed to store assistant turn", goerr.V("session_id", req.SessionID))
	}
	result.AssistantTurn = assistantTurn
	result.State = StatePersisted

	p.enqueue(ctx, req.OwnerID, assistantTurn)
	result.State = StateEmbeddingQueued

	p.checkFinalize(ctx, req, reply, result)
	return nil
}

func (p *Processor) invokeModel(ctx context.Context, sessionID uuid.UUID, messages []llm.Message, sink Sink) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Model")
	defer span.End()

	if p.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ModelTimeout)
		defer cancel()
	}

	fw := &chunkForwarder{sink: sink, logger: p.deps.Logger, sessionID: sessionID}
	reply, err := p.deps.Model.ChatStream(ctx, messages, fw.forward)
	if err != nil {
		span.RecordError(err)
		return "", classify(ErrProvider, err, "model call failed", goerr.V("session_id", sessionID))
	}
	if strings.TrimSpace(reply) == "" {
		return "", goerr.Wrap(ErrProvider, "model returned an empty reply", goerr.V("session_id", sessionID))
	}
	span.SetAttributes(attribute.Int("reply.chunks", fw.chunks))
	return reply, nil
}

func (p *Processor) checkFinalize(ctx context.Context, req TurnRequest, assistantText string, result *TurnResult) {
	result.State = StateFinalizeChecked
	if p.deps.Finalizer == nil || !p.deps.Finalizer.ShouldFinalize(req.Message, assistantText) {
		return
	}

	result.Finalized = true
	sessionID := req.SessionID
	p.deps.Executor.Go(ctx, "finalize-session", func(ctx context.Context) error {
		if _, err := p.deps.Finalizer.Finalize(ctx, sessionID); err != nil {
			return classify(ErrFinalization, err, "background finalization failed", goerr.V("session_id", sessionID))
		}
		return nil
	})
}

func (p *Processor) enqueue(ctx context.Context, ownerID uuid.UUID, turn *entity.Turn) {
	p.deps.Queue.Enqueue(ctx, retrieval.Document{
		TurnID:    turn.Id,
		SessionID: turn.SessionId,
		OwnerID:   ownerID,
		Role:      turn.Role,
		Content:   turn.Content,
	})
}

// isFirstTurn counts before anything is written. A failed count skips naming.
func (p *Processor) isFirstTurn(ctx context.Context, sessionID uuid.UUID) bool {
	count, err := p.deps.Turns.CountTurns(ctx, sessionID)
	if err != nil {
		p.deps.Logger.Warn("PIPELINE", "Failed to count turns, title left unchanged", logger.ErrorDetails(err, map[string]interface{}{
			"session_id": sessionID.String(),
		}))
		return false
	}
	return count == 0
}

func (p *Processor) nameSession(ctx context.Context, sessionID uuid.UUID, message string) string {
	title := session.DeriveTitle(message)
	if err := p.deps.Turns.UpdateSessionTitle(ctx, sessionID, title); err != nil {
		p.deps.Logger.Warn("PIPELINE", "Failed to set session title", logger.ErrorDetails(err, map[string]interface{}{
			"session_id": sessionID.String(),
		}))
		return ""
	}
	return title
}

func (p *Processor) logPersistence(what string, sessionID uuid.UUID, err error) {
	err = classify(ErrPersistence, err, "failed to store "+what, goerr.V("session_id", sessionID))
	p.deps.Logger.Error("PIPELINE", "Crisis path persistence failed", logger.ErrorDetails(err, nil))
}

func validate(req TurnRequest) error {
	switch {
	case req.SessionID == uuid.Nil:
		return goerr.Wrap(ErrValidation, "session id is required")
	case req.OwnerID == uuid.Nil:
		return goerr.Wrap(ErrValidation, "owner id is required")
	case strings.TrimSpace(req.Message) == "":
		return goerr.Wrap(ErrValidation, "message is required")
	}
	return nil
}

// chunkForwarder copies model chunks to the sink until the first write error.
type chunkForwarder struct {
	sink      Sink
	logger    logger.ILogger
	sessionID uuid.UUID
	abandoned bool
	chunks    int
}

func (f *chunkForwarder) forward(chunk string) {
	f.chunks++
	if f.sink == nil || f.abandoned || chunk == "" {
		return
	}
	if err := f.sink.Write(chunk); err != nil {
		f.abandoned = true
		f.logger.Info("PIPELINE", "Client went away, streaming abandoned", logger.ErrorDetails(err, map[string]interface{}{
			"session_id": f.sessionID.String(),
		}))
	}
}
