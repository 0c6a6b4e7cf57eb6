package session

import (
	"context"
	"errors"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/repository/specification"
	"clinical-intake-be/internal/repository/unitofwork"
	"clinical-intake-be/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAccessDenied    = errors.New("access denied to session")
)

// Manager handles session lifecycle and access checks
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Create opens an empty session for a patient. The title is replaced on the first turn.
func (m *Manager) Create(ctx context.Context, uow unitofwork.UnitOfWork, ownerId uuid.UUID, reviewerId *uuid.UUID) (*entity.IntakeSession, error) {
	session := &entity.IntakeSession{
		Id:         uuid.New(),
		OwnerId:    ownerId,
		ReviewerId: reviewerId,
		Title:      constant.DefaultSessionTitle,
	}
	if err := uow.IntakeSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// VerifyAccess loads the session and applies the access rule for the caller's role.
// Patients may reach their own sessions. Reviewers may reach sessions assigned to them.
func (m *Manager) VerifyAccess(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, role string, sessionId uuid.UUID) (*entity.IntakeSession, error) {
	session, err := uow.IntakeSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !CanAccess(session, userId, role) {
		return nil, ErrAccessDenied
	}
	return session, nil
}

func CanAccess(session *entity.IntakeSession, userId uuid.UUID, role string) bool {
	switch role {
	case constant.UserRoleReviewer:
		return session.IsReviewedBy(userId)
	default:
		return session.IsOwnedBy(userId)
	}
}

// DeriveTitle is the first 60 characters of the opening message, with "..." only when cut.
func DeriveTitle(firstMessage string) string {
	title, cut := utils.TruncateRunes(firstMessage, constant.SessionTitleMaxLen)
	if cut {
		return title + constant.SessionTitleEllipsis
	}
	return title
}
