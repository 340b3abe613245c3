package contract

import (
	"context"

	"candidate-collab/internal/entity"

	"github.com/google/uuid"
)

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Note, error)
	// FindByCandidate returns the thread oldest first.
	FindByCandidate(ctx context.Context, candidateId string) ([]*entity.Note, error)
}

type CandidateRepository interface {
	Save(ctx context.Context, candidate *entity.Candidate) error
	FindByID(ctx context.Context, id string) (*entity.Candidate, error)
}
