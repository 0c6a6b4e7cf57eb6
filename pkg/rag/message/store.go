package message

import (
	"context"
	"errors"
	"time"

	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"
	"clinical-intake-be/internal/repository/unitofwork"
	"clinical-intake-be/pkg/rag/session"

	"github.com/google/uuid"
)

var ErrSummaryNotFound = errors.New("summary not found")

// Store persists turns, session metadata and summaries through the unit of work.
type Store struct {
	uowFactory unitofwork.RepositoryFactory
	clock      func() time.Time
}

func NewStore(uowFactory unitofwork.RepositoryFactory) *Store {
	return &Store{
		uowFactory: uowFactory,
		clock:      time.Now,
	}
}

// CreateTurn appends a turn and refreshes the session's updated timestamp in one transaction.
// created_at is bumped past the previous turn so ordering stays strict at database precision.
func (s *Store) CreateTurn(ctx context.Context, sessionId uuid.UUID, role, content string) (turn *entity.Turn, err error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	sess, err := uow.IntakeSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.ForUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}

	last, err := uow.TurnRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC().Truncate(time.Microsecond)
	if last != nil && !now.After(last.CreatedAt) {
		now = last.CreatedAt.Add(time.Microsecond)
	}

	turn = &entity.Turn{
		Id:        uuid.New(),
		SessionId: sessionId,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	if err = uow.TurnRepository().Create(ctx, turn); err != nil {
		return nil, err
	}
	if err = uow.IntakeSessionRepository().Touch(ctx, sessionId, now); err != nil {
		return nil, err
	}
	if err = uow.Commit(); err != nil {
		return nil, err
	}
	return turn, nil
}

// FindSession returns session.ErrSessionNotFound when id is unknown.
func (s *Store) FindSession(ctx context.Context, sessionId uuid.UUID) (*entity.IntakeSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sess, err := uow.IntakeSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) ListTurns(ctx context.Context, sessionId uuid.UUID) ([]*entity.Turn, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.TurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
}

func (s *Store) CountTurns(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.TurnRepository().Count(ctx, specification.BySessionID{SessionID: sessionId})
}

func (s *Store) UpdateSessionTitle(ctx context.Context, sessionId uuid.UUID, title string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.IntakeSessionRepository().UpdateTitle(ctx, sessionId, title)
}

func (s *Store) UpsertSummary(ctx context.Context, summary *entity.SessionSummary) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SessionSummaryRepository().Upsert(ctx, summary)
}

// FindSummary returns ErrSummaryNotFound when the session has not been summarized yet.
func (s *Store) FindSummary(ctx context.Context, sessionId uuid.UUID) (*entity.SessionSummary, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	summary, err := uow.SessionSummaryRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, ErrSummaryNotFound
	}
	return summary, nil
}
