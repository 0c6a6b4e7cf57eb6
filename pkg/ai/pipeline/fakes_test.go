package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/events"
	"clinical-intake-be/pkg/llm"
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/utils/async"

	"github.com/google/uuid"
)

var errStorageDown = errors.New("storage down")

// steps records the order in which collaborators are reached.
type steps struct {
	mu  sync.Mutex
	log []string
}

func (s *steps) add(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, step)
}

func (s *steps) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

type fakeTurnStore struct {
	mu         sync.Mutex
	steps      *steps
	turns      map[uuid.UUID][]*entity.Turn
	titles     map[uuid.UUID]string
	titleCalls int
	failRole   map[string]error
	listErr    error
	countErr   error
	clock      time.Time
}

func newFakeTurnStore(s *steps) *fakeTurnStore {
	return &fakeTurnStore{
		steps:    s,
		turns:    make(map[uuid.UUID][]*entity.Turn),
		titles:   make(map[uuid.UUID]string),
		failRole: make(map[string]error),
		clock:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTurnStore) CreateTurn(ctx context.Context, sessionID uuid.UUID, role, content string) (*entity.Turn, error) {
	f.steps.add("create:" + role)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRole[role]; err != nil {
		return nil, err
	}
	f.clock = f.clock.Add(time.Second)
	turn := &entity.Turn{
		Id:        uuid.New(),
		SessionId: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: f.clock,
	}
	f.turns[sessionID] = append(f.turns[sessionID], turn)
	return turn, nil
}

func (f *fakeTurnStore) ListTurns(ctx context.Context, sessionID uuid.UUID) ([]*entity.Turn, error) {
	f.steps.add("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*entity.Turn(nil), f.turns[sessionID]...), nil
}

func (f *fakeTurnStore) CountTurns(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	f.steps.add("count")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.turns[sessionID])), nil
}

func (f *fakeTurnStore) UpdateSessionTitle(ctx context.Context, sessionID uuid.UUID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titleCalls++
	f.titles[sessionID] = title
	return nil
}

func (f *fakeTurnStore) stored(sessionID uuid.UUID) []*entity.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.Turn(nil), f.turns[sessionID]...)
}

type fakeSummaryStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entity.SessionSummary
	upserts int
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{rows: make(map[uuid.UUID]*entity.SessionSummary)}
}

func (f *fakeSummaryStore) UpsertSummary(ctx context.Context, summary *entity.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if existing, ok := f.rows[summary.SessionId]; ok {
		summary.Id = existing.Id
	} else {
		summary.Id = uuid.New()
	}
	copied := *summary
	f.rows[summary.SessionId] = &copied
	return nil
}

type fakeRetriever struct {
	steps *steps
	items []retrieval.Item
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, ownerID uuid.UUID, text string, limit int) []retrieval.Item {
	f.steps.add("retrieve")
	f.calls++
	if len(f.items) > limit {
		return f.items[:limit]
	}
	return f.items
}

// fakeModel streams its reply word by word and answers Generate with summary.
type fakeModel struct {
	mu          sync.Mutex
	steps       *steps
	reply       string
	summary     string
	streamErr   error
	generateErr error
	streamCalls int
	genCalls    int
	lastHistory []llm.Message
}

func (f *fakeModel) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.ChatStream(ctx, history, nil, options...)
}

func (f *fakeModel) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, options ...llm.Option) (string, error) {
	f.steps.add("model")
	f.mu.Lock()
	f.streamCalls++
	f.lastHistory = history
	f.mu.Unlock()
	if f.streamErr != nil {
		return "", f.streamErr
	}
	if onChunk != nil {
		for _, word := range strings.SplitAfter(f.reply, " ") {
			onChunk(word)
		}
	}
	return f.reply, nil
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.summary, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

type fakeQueue struct {
	mu   sync.Mutex
	docs []retrieval.Document
}

func (f *fakeQueue) Enqueue(ctx context.Context, doc retrieval.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingSink struct {
	chunks []string
	failAt int
	writes int
}

func (s *recordingSink) Write(chunk string) error {
	s.writes++
	if s.failAt > 0 && s.writes >= s.failAt {
		return errors.New("broken pipe")
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

const testSummary = `**Intake Summary**: Patient reports low mood for three months.

**Key Observed Themes**: Work stress and isolation.

**Symptom Patterns**: Depressive cluster with poor sleep.

**Clinical Observations**: Coherent, reflective, mildly flat affect.

**Safety Flags**: None identified.`

type harness struct {
	steps     *steps
	turns     *fakeTurnStore
	summaries *fakeSummaryStore
	retriever *fakeRetriever
	model     *fakeModel
	queue     *fakeQueue
	publisher *fakePublisher
	finalizer *Finalizer
	processor *Processor
	sessionID uuid.UUID
	ownerID   uuid.UUID
}

type harnessOption func(*Dependencies, *FinalizerConfig)

func newHarness(opts ...harnessOption) *harness {
	s := &steps{}
	h := &harness{
		steps:     s,
		turns:     newFakeTurnStore(s),
		summaries: newFakeSummaryStore(),
		retriever: &fakeRetriever{steps: s},
		model:     &fakeModel{steps: s, reply: "Thank you for sharing. How long has this been going on?", summary: testSummary},
		queue:     &fakeQueue{},
		publisher: &fakePublisher{},
		sessionID: uuid.New(),
		ownerID:   uuid.New(),
	}

	log := logger.NewNopLogger()
	fcfg := FinalizerConfig{ModelTimeout: time.Second, OnModelMarker: true}
	deps := Dependencies{
		Turns:     h.turns,
		Retriever: h.retriever,
		Model:     h.model,
		Queue:     h.queue,
		Executor:  async.InlineExecutor{Logger: log},
		Logger:    log,
		Events:    h.publisher,
	}
	for _, opt := range opts {
		opt(&deps, &fcfg)
	}

	h.finalizer = NewFinalizer(h.turns, h.summaries, h.model, h.publisher, log, fcfg)
	deps.Finalizer = h.finalizer
	h.processor = NewProcessor(deps, Config{ContextLimit: 5, ModelTimeout: time.Second})
	return h
}

func (h *harness) send(message string) (*TurnResult, error) {
	return h.processor.Process(context.Background(), TurnRequest{
		SessionID: h.sessionID,
		OwnerID:   h.ownerID,
		Message:   message,
	}, nil)
}
