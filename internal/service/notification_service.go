package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candidate-collab/internal/entity"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/repository/contract"
	"candidate-collab/pkg/events"

	"github.com/google/uuid"
)

const notificationConsumer = "notif-service-worker"

type INotificationService interface {
	// Start subscribes to NOTE_CREATED until ctx is done.
	Start(ctx context.Context) error
	List(ctx context.Context, userID uuid.UUID) ([]model.NotificationRecord, error)
	MarkRead(ctx context.Context, userID, noteID uuid.UUID) error
}

type notificationService struct {
	repo       contract.NotificationRepository
	users      contract.UserRepository
	candidates contract.CandidateRepository
	subscriber events.Subscriber
	emitter    RoomEmitter
	logger     logger.ILogger
}

func NewNotificationService(repo contract.NotificationRepository, users contract.UserRepository, candidates contract.CandidateRepository, sub events.Subscriber, emitter RoomEmitter, log logger.ILogger) INotificationService {
	return &notificationService{
		repo:       repo,
		users:      users,
		candidates: candidates,
		subscriber: sub,
		emitter:    emitter,
		logger:     log,
	}
}

func (s *notificationService) Start(ctx context.Context) error {
	subject := events.Subject(events.EventNoteCreated)
	if err := s.subscriber.Subscribe(ctx, subject, notificationConsumer, s.handleEvent); err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("NotificationService", "Notification service started", map[string]interface{}{"subject": subject})
	return nil
}

// handleEvent stores one notification per mentioned user and pushes notify to
// that user's room. Redelivered events find their records already present and
// push nothing.
func (s *notificationService) handleEvent(ctx context.Context, event events.Event) error {
	if events.TypeFromSubject(event.EventType()) != events.EventNoteCreated {
		return nil
	}
	nc := events.NoteCreatedFrom(event)

	noteID, err := uuid.Parse(nc.NoteID)
	if err != nil {
		s.logger.Warn("NotificationService", "NOTE_CREATED without a valid note id", map[string]interface{}{"note_id": nc.NoteID})
		return nil
	}
	senderID, _ := uuid.Parse(nc.SenderID)

	for _, raw := range nc.MentionedUserIDs {
		userID, err := uuid.Parse(raw)
		if err != nil || userID == senderID {
			continue
		}

		created, err := s.repo.CreateIfAbsent(ctx, &entity.Notification{
			UserId:      userID,
			NoteId:      noteID,
			CandidateId: nc.CandidateID,
			SenderId:    senderID,
			Content:     nc.Content,
			CreatedAt:   nc.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to store notification for %s: %w", userID, err)
		}
		if !created {
			continue
		}

		payload := model.NotifyPayload{CandidateID: nc.CandidateID, NoteID: nc.NoteID}
		if err := s.emitter.Emit(userID.String(), model.EventNotify, payload); err != nil {
			s.logger.Warn("NotificationService", "Failed to push notify", map[string]interface{}{"user_id": userID, "error": err.Error()})
		}
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID) ([]model.NotificationRecord, error) {
	rows, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]model.NotificationRecord, 0, len(rows))
	for _, n := range rows {
		out = append(out, model.NotificationRecord{
			NoteID:         n.NoteId.String(),
			Content:        n.Content,
			SenderUsername: s.username(ctx, n.SenderId),
			CandidateID:    n.CandidateId,
			CandidateName:  s.candidateName(ctx, n.CandidateId),
			CreatedAt:      n.CreatedAt,
			IsRead:         n.IsRead,
		})
	}
	return out, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, noteID uuid.UUID) error {
	err := s.repo.MarkRead(ctx, userID, noteID, time.Now().UTC())
	if errors.Is(err, contract.ErrNotFound) {
		return ErrNotificationMissing
	}
	return err
}

func (s *notificationService) username(ctx context.Context, id uuid.UUID) string {
	u, err := s.users.FindByID(ctx, id)
	if err != nil || u == nil {
		return ""
	}
	return u.Username
}

// candidateName falls back to the id for candidates nobody registered.
func (s *notificationService) candidateName(ctx context.Context, id string) string {
	if s.candidates == nil {
		return id
	}
	c, err := s.candidates.FindByID(ctx, id)
	if err != nil || c == nil || c.Name == "" {
		return id
	}
	return c.Name
}
