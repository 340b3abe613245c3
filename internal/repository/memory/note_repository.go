package memory

import (
	"context"
	"sort"
	"sync"

	"candidate-collab/internal/entity"
	"candidate-collab/internal/repository/contract"

	"github.com/google/uuid"
)

type NoteRepository struct {
	mu          sync.RWMutex
	notes       map[uuid.UUID]*entity.Note
	byCandidate map[string][]uuid.UUID
}

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{
		notes:       make(map[uuid.UUID]*entity.Note),
		byCandidate: make(map[string][]uuid.UUID),
	}
}

func (r *NoteRepository) Create(ctx context.Context, note *entity.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[note.Id]; exists {
		return contract.ErrDuplicate
	}
	cp := *note
	r.notes[note.Id] = &cp
	r.byCandidate[note.CandidateId] = append(r.byCandidate[note.CandidateId], note.Id)
	return nil
}

func (r *NoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n, ok := r.notes[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (r *NoteRepository) FindByCandidate(ctx context.Context, candidateId string) ([]*entity.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byCandidate[candidateId]
	out := make([]*entity.Note, 0, len(ids))
	for _, id := range ids {
		cp := *r.notes[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type CandidateRepository struct {
	mu         sync.RWMutex
	candidates map[string]*entity.Candidate
}

func NewCandidateRepository() *CandidateRepository {
	return &CandidateRepository{candidates: make(map[string]*entity.Candidate)}
}

func (r *CandidateRepository) Save(ctx context.Context, candidate *entity.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *candidate
	r.candidates[candidate.Id] = &cp
	return nil
}

func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*entity.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.candidates[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}
