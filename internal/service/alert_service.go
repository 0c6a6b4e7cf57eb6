package service

import (
	"context"
	"errors"

	"clinical-intake-be/internal/dto"
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/events"
	pktNats "clinical-intake-be/pkg/nats"
	"clinical-intake-be/pkg/rag/session"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// AlertDelivery pushes alerts to connected reviewers. Implemented by the websocket hub.
type AlertDelivery interface {
	Send(reviewerID uuid.UUID, alert dto.ReviewerAlert)
}

type SessionLookup interface {
	FindSession(ctx context.Context, sessionId uuid.UUID) (*entity.IntakeSession, error)
}

// AlertService routes intake domain events to the session's assigned reviewer.
type AlertService struct {
	subscriber *pktNats.Subscriber
	sessions   SessionLookup
	delivery   AlertDelivery
	logger     logger.ILogger
}

func NewAlertService(sub *pktNats.Subscriber, sessions SessionLookup, delivery AlertDelivery, log logger.ILogger) *AlertService {
	return &AlertService{
		subscriber: sub,
		sessions:   sessions,
		delivery:   delivery,
		logger:     log,
	}
}

// Start subscribes to every intake event with a durable consumer. Without NATS it does nothing.
func (s *AlertService) Start(ctx context.Context) error {
	if s.subscriber == nil {
		s.logger.Warn("ALERTS", "NATS unavailable, reviewer alerts disabled", nil)
		return nil
	}
	if err := s.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+">", "reviewer-alerts", s.HandleEvent); err != nil {
		return goerr.Wrap(err, "failed to start reviewer alert subscriber")
	}
	s.logger.Info("ALERTS", "Reviewer alert service started", nil)
	return nil
}

// HandleEvent forwards an event to the reviewer of its session, if any.
// Unknown sessions and unassigned sessions are acknowledged and dropped.
func (s *AlertService) HandleEvent(ctx context.Context, event events.Event) error {
	base := events.BaseEvent{Type: event.EventType(), Data: event.Payload(), OccurredAt: event.Timestamp()}
	sessionID, ok := base.SessionID()
	if !ok {
		s.logger.Warn("ALERTS", "Event without session id ignored", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	sess, err := s.sessions.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return goerr.Wrap(err, "failed to resolve session for alert", goerr.V("session_id", sessionID))
	}
	if sess.ReviewerId == nil {
		return nil
	}

	alert := dto.ReviewerAlert{
		Type:       event.EventType(),
		SessionId:  sessionID,
		Title:      sess.Title,
		OccurredAt: event.Timestamp(),
	}
	if flagged, ok := event.Payload()["flagged"].(bool); ok {
		alert.Flagged = flagged
	}
	if event.EventType() == events.TypeCrisisDetected {
		alert.Flagged = true
	}

	s.delivery.Send(*sess.ReviewerId, alert)
	s.logger.Info("ALERTS", "Reviewer alert delivered", map[string]interface{}{
		"type":        alert.Type,
		"session_id":  sessionID.String(),
		"reviewer_id": sess.ReviewerId.String(),
	})
	return nil
}
