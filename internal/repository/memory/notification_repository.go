package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"candidate-collab/internal/entity"
	"candidate-collab/internal/repository/contract"

	"github.com/google/uuid"
)

type notificationKey struct {
	userId uuid.UUID
	noteId uuid.UUID
}

type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[notificationKey]*entity.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[notificationKey]*entity.Notification)}
}

func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *entity.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := notificationKey{userId: n.UserId, noteId: n.NoteId}
	if _, exists := r.notifications[key]; exists {
		return false, nil
	}
	cp := *n
	r.notifications[key] = &cp
	return true, nil
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userId uuid.UUID) ([]*entity.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Notification
	for key, n := range r.notifications {
		if key.userId == userId {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userId, noteId uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationKey{userId: userId, noteId: noteId}]
	if !ok {
		return contract.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}
