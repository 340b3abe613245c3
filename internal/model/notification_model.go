package model

import "time"

// NotificationRecord is a mention notification as the client sees it.
// NoteID is the identity; IsRead only ever moves from false to true.
type NotificationRecord struct {
	NoteID         string    `json:"noteId"`
	Content        string    `json:"content"`
	SenderUsername string    `json:"senderUsername"`
	CandidateID    string    `json:"candidateId"`
	CandidateName  string    `json:"candidateName"`
	CreatedAt      time.Time `json:"createdAt"`
	IsRead         bool      `json:"isRead"`
}

// NotifyPayload is the body of the "notify" realtime event.
type NotifyPayload struct {
	CandidateID string `json:"candidateId"`
	NoteID      string `json:"noteId"`
}
