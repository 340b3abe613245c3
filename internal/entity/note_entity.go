package entity

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	Id          uuid.UUID
	CandidateId string
	SenderId    uuid.UUID
	Content     string
	CreatedAt   time.Time
}

type Candidate struct {
	Id   string
	Name string
}
