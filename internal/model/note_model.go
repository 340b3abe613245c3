package model

import "time"

// Note is one immutable entry of a candidate's note thread.
type Note struct {
	ID             string    `json:"id"`
	CandidateID    string    `json:"candidateId"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}
