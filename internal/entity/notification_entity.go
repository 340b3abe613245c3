package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one mention delivered to one user. (UserId, NoteId) is unique.
type Notification struct {
	UserId      uuid.UUID
	NoteId      uuid.UUID
	CandidateId string
	SenderId    uuid.UUID
	Content     string
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}
