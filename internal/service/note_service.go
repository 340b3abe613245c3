package service

import (
	"context"
	"time"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/entity"
	"candidate-collab/internal/mention"
	"candidate-collab/internal/metrics"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/repository/contract"
	"candidate-collab/pkg/events"

	"github.com/google/uuid"
)

// RoomEmitter delivers an event to everyone in a room. *websocket.Hub satisfies it.
type RoomEmitter interface {
	Emit(room, event string, payload interface{}) error
}

type INoteService interface {
	Create(ctx context.Context, senderID uuid.UUID, req *dto.CreateNoteRequest) (*model.Note, error)
	// ListByCandidate returns the thread oldest first.
	ListByCandidate(ctx context.Context, candidateId string) ([]model.Note, error)
}

type noteService struct {
	notes     contract.NoteRepository
	users     contract.UserRepository
	directory IUserService
	emitter   RoomEmitter
	publisher events.Publisher
	metrics   *metrics.Hub
	logger    logger.ILogger
}

func NewNoteService(notes contract.NoteRepository, users contract.UserRepository, directory IUserService, emitter RoomEmitter, publisher events.Publisher, m *metrics.Hub, log logger.ILogger) INoteService {
	if m == nil {
		m = metrics.NewHub(nil)
	}
	return &noteService{
		notes:     notes,
		users:     users,
		directory: directory,
		emitter:   emitter,
		publisher: publisher,
		metrics:   m,
		logger:    log,
	}
}

// Create stores a note, emits it to the candidate room and publishes
// NOTE_CREATED with the ids of everyone it mentions other than the sender.
func (s *noteService) Create(ctx context.Context, senderID uuid.UUID, req *dto.CreateNoteRequest) (*model.Note, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	note := &entity.Note{
		Id:          uuid.New(),
		CandidateId: req.CandidateId,
		SenderId:    sender.Id,
		Content:     req.Content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	s.metrics.NotesCreated.Inc()

	out := toNoteModel(note, sender.Username)
	if err := s.emitter.Emit(note.CandidateId, model.EventMessageSent, out); err != nil {
		s.logger.Warn("NOTE", "Failed to emit messageSent", map[string]interface{}{"note_id": out.ID, "error": err.Error()})
	}

	mentioned, err := s.mentionedIDs(ctx, note)
	if err != nil {
		s.logger.Warn("NOTE", "Mention lookup failed", map[string]interface{}{"note_id": out.ID, "error": err.Error()})
		return &out, nil
	}
	if len(mentioned) == 0 {
		return &out, nil
	}

	event := events.NoteCreated{
		NoteID:           out.ID,
		CandidateID:      note.CandidateId,
		SenderID:         out.SenderID,
		Content:          note.Content,
		MentionedUserIDs: mentioned,
		CreatedAt:        note.CreatedAt,
	}.Event()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("NOTE", "Failed to publish NOTE_CREATED event", map[string]interface{}{"note_id": out.ID, "error": err.Error()})
	}
	return &out, nil
}

func (s *noteService) mentionedIDs(ctx context.Context, note *entity.Note) ([]string, error) {
	users, err := s.directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, u := range mention.NewMatcher(users).Mentioned(note.Content) {
		if u.ID == note.SenderId.String() {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *noteService) ListByCandidate(ctx context.Context, candidateId string) ([]model.Note, error) {
	notes, err := s.notes.FindByCandidate(ctx, candidateId)
	if err != nil {
		return nil, err
	}

	usernames := make(map[uuid.UUID]string)
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		name, ok := usernames[n.SenderId]
		if !ok {
			if u, err := s.users.FindByID(ctx, n.SenderId); err == nil && u != nil {
				name = u.Username
			}
			usernames[n.SenderId] = name
		}
		out = append(out, toNoteModel(n, name))
	}
	return out, nil
}

func toNoteModel(n *entity.Note, senderUsername string) model.Note {
	return model.Note{
		ID:             n.Id.String(),
		CandidateID:    n.CandidateId,
		SenderID:       n.SenderId.String(),
		SenderUsername: senderUsername,
		Content:        n.Content,
		CreatedAt:      n.CreatedAt,
	}
}
