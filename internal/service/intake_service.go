package service

import (
	"context"
	"errors"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/dto"
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/internal/repository/specification"
	"clinical-intake-be/internal/repository/unitofwork"
	"clinical-intake-be/pkg/ai/pipeline"
	"clinical-intake-be/pkg/rag/message"
	"clinical-intake-be/pkg/rag/session"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// IIntakeService is the HTTP-facing surface of intake sessions.
type IIntakeService interface {
	CreateSession(ctx context.Context, identity dto.Identity, request *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, identity dto.Identity) ([]*dto.SessionResponse, error)
	GetSession(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SessionDetailResponse, error)
	// ResolveSession returns the caller's session, creating one when sessionId is nil.
	ResolveSession(ctx context.Context, identity dto.Identity, sessionId *uuid.UUID) (*entity.IntakeSession, error)
	SendTurn(ctx context.Context, ownerId, sessionId uuid.UUID, text string, sink pipeline.Sink) (*pipeline.TurnResult, error)
	GenerateSummary(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SummaryResponse, error)
	GetSummary(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SummaryResponse, error)
}

type intakeService struct {
	uowFactory     unitofwork.RepositoryFactory
	sessionManager *session.Manager
	store          *message.Store
	processor      *pipeline.Processor
	finalizer      *pipeline.Finalizer
	logger         logger.ILogger
}

func NewIntakeService(
	uowFactory unitofwork.RepositoryFactory,
	store *message.Store,
	processor *pipeline.Processor,
	finalizer *pipeline.Finalizer,
	log logger.ILogger,
) IIntakeService {
	return &intakeService{
		uowFactory:     uowFactory,
		sessionManager: session.NewManager(),
		store:          store,
		processor:      processor,
		finalizer:      finalizer,
		logger:         log,
	}
}

func (s *intakeService) CreateSession(ctx context.Context, identity dto.Identity, request *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	var reviewerId *uuid.UUID
	if request != nil {
		reviewerId = request.ReviewerId
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	sess, err := s.sessionManager.Create(ctx, uow, identity.UserId, reviewerId)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session", goerr.V("owner_id", identity.UserId))
	}

	s.logger.Info("INTAKE", "Session created", map[string]interface{}{
		"session_id":   sess.Id.String(),
		"has_reviewer": reviewerId != nil,
	})
	return toSessionResponse(sess, 0, false), nil
}

func (s *intakeService) ListSessions(ctx context.Context, identity dto.Identity) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	var scope specification.Specification = specification.OwnedBy{OwnerID: identity.UserId}
	if identity.Role == constant.UserRoleReviewer {
		scope = specification.ReviewedBy{ReviewerID: identity.UserId}
	}

	sessions, err := uow.IntakeSessionRepository().FindAll(ctx,
		scope,
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions")
	}
	if len(sessions) == 0 {
		return []*dto.SessionResponse{}, nil
	}

	ids := make([]uuid.UUID, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.Id)
	}
	summaries, err := uow.SessionSummaryRepository().FindAll(ctx, specification.BySessionIDs{SessionIDs: ids})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load summaries")
	}
	summarized := make(map[uuid.UUID]bool, len(summaries))
	for _, summary := range summaries {
		summarized[summary.SessionId] = true
	}

	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		count, err := uow.TurnRepository().Count(ctx, specification.BySessionID{SessionID: sess.Id})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to count turns", goerr.V("session_id", sess.Id))
		}
		res = append(res, toSessionResponse(sess, count, summarized[sess.Id]))
	}
	return res, nil
}

func (s *intakeService) GetSession(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SessionDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sess, err := s.sessionManager.VerifyAccess(ctx, uow, identity.UserId, identity.Role, sessionId)
	if err != nil {
		return nil, err
	}

	turns, err := s.store.ListTurns(ctx, sessionId)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load turns", goerr.V("session_id", sessionId))
	}

	var summaryRes *dto.SummaryResponse
	summary, err := s.store.FindSummary(ctx, sessionId)
	switch {
	case err == nil:
		summaryRes = toSummaryResponse(summary)
	case errors.Is(err, message.ErrSummaryNotFound):
	default:
		return nil, goerr.Wrap(err, "failed to load summary", goerr.V("session_id", sessionId))
	}

	turnRes := make([]*dto.TurnResponse, 0, len(turns))
	for _, turn := range turns {
		turnRes = append(turnRes, &dto.TurnResponse{
			Id:        turn.Id,
			Role:      turn.Role,
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		})
	}

	return &dto.SessionDetailResponse{
		SessionResponse: *toSessionResponse(sess, int64(len(turns)), summaryRes != nil),
		Turns:           turnRes,
		Summary:         summaryRes,
	}, nil
}

func (s *intakeService) ResolveSession(ctx context.Context, identity dto.Identity, sessionId *uuid.UUID) (*entity.IntakeSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if sessionId == nil {
		return s.sessionManager.Create(ctx, uow, identity.UserId, nil)
	}
	// Only the owning patient may write to a session.
	return s.sessionManager.VerifyAccess(ctx, uow, identity.UserId, constant.UserRolePatient, *sessionId)
}

func (s *intakeService) SendTurn(ctx context.Context, ownerId, sessionId uuid.UUID, text string, sink pipeline.Sink) (*pipeline.TurnResult, error) {
	return s.processor.Process(ctx, pipeline.TurnRequest{
		SessionID: sessionId,
		OwnerID:   ownerId,
		Message:   text,
	}, sink)
}

func (s *intakeService) GenerateSummary(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.sessionManager.VerifyAccess(ctx, uow, identity.UserId, identity.Role, sessionId); err != nil {
		return nil, err
	}

	summary, err := s.finalizer.Finalize(context.WithoutCancel(ctx), sessionId)
	if err != nil {
		return nil, err
	}
	return toSummaryResponse(summary), nil
}

func (s *intakeService) GetSummary(ctx context.Context, identity dto.Identity, sessionId uuid.UUID) (*dto.SummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.sessionManager.VerifyAccess(ctx, uow, identity.UserId, identity.Role, sessionId); err != nil {
		return nil, err
	}

	summary, err := s.store.FindSummary(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return toSummaryResponse(summary), nil
}

func toSessionResponse(sess *entity.IntakeSession, turnCount int64, hasSummary bool) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:         sess.Id,
		OwnerId:    sess.OwnerId,
		ReviewerId: sess.ReviewerId,
		Title:      sess.Title,
		TurnCount:  turnCount,
		HasSummary: hasSummary,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
}

func toSummaryResponse(summary *entity.SessionSummary) *dto.SummaryResponse {
	updatedAt := summary.CreatedAt
	if summary.UpdatedAt != nil {
		updatedAt = *summary.UpdatedAt
	}
	return &dto.SummaryResponse{
		SessionId:   summary.SessionId,
		Summary:     summary.Summary,
		Sections:    summary.Sections,
		SafetyFlags: summary.SafetyFlags,
		UpdatedAt:   updatedAt,
	}
}
