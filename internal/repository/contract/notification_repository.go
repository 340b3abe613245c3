package contract

import (
	"context"
	"time"

	"candidate-collab/internal/entity"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	// CreateIfAbsent stores n unless (UserId, NoteId) already exists and
	// reports whether it did.
	CreateIfAbsent(ctx context.Context, n *entity.Notification) (bool, error)
	// FindByUser returns newest first.
	FindByUser(ctx context.Context, userId uuid.UUID) ([]*entity.Notification, error)
	// MarkRead returns ErrNotFound when the user has no such notification.
	MarkRead(ctx context.Context, userId, noteId uuid.UUID, at time.Time) error
}
