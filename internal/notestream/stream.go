// Package notestream keeps one candidate's note thread in sync: history from
// REST, new notes from the realtime channel.
package notestream

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"candidate-collab/internal/mention"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/realtime"
)

type NoteSource interface {
	Notes(ctx context.Context, candidateID string) ([]model.Note, error)
}

// Channel is the part of realtime.Channel a stream uses.
type Channel interface {
	JoinRoom(roomID string)
	On(event string, fn realtime.Handler) *realtime.Subscription
	Off(sub *realtime.Subscription)
}

// Stream is the ordered note list of one candidate. Notes are appended and
// never changed or removed.
type Stream struct {
	candidateID string
	username    string
	source      NoteSource
	channel     Channel
	log         logger.ILogger

	mu        sync.Mutex
	loaded    bool
	notes     []model.Note
	seen      map[string]struct{}
	pending   []model.Note
	sub       *realtime.Subscription
	onAppend  []func(model.Note)
	onMention []func(model.Note)
}

type Option func(*Stream)

func WithLogger(log logger.ILogger) Option {
	return func(s *Stream) { s.log = log }
}

// OnAppend runs fn for every note added after history loaded, live or merged.
func OnAppend(fn func(model.Note)) Option {
	return func(s *Stream) { s.onAppend = append(s.onAppend, fn) }
}

// OnMention runs fn for every live note that mentions the current user.
func OnMention(fn func(model.Note)) Option {
	return func(s *Stream) { s.onMention = append(s.onMention, fn) }
}

// New builds a stream for candidateID; username is the signed-in user's.
func New(source NoteSource, channel Channel, candidateID, username string, opts ...Option) *Stream {
	s := &Stream{
		candidateID: candidateID,
		username:    username,
		source:      source,
		channel:     channel,
		log:         logger.NewNopLogger(),
		seen:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to live notes, joins the candidate room and loads history.
// Live notes that arrive before history are held back and merged in. Start
// may be called again after a failed load.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sub == nil {
		s.sub = s.channel.On(model.EventMessageSent, s.handleLive)
	}
	s.mu.Unlock()
	s.channel.JoinRoom(s.candidateID)

	history, err := s.source.Notes(ctx, s.candidateID)
	if err != nil {
		s.log.Warn("NOTESTREAM", "Failed to load note history", map[string]interface{}{
			"candidate_id": s.candidateID,
			"error":        err.Error(),
		})
		return err
	}
	s.merge(history)
	return nil
}

// Close stops listening. The room stays joined; other views may still use it.
func (s *Stream) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	s.channel.Off(sub)
}

func (s *Stream) Notes() []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Note(nil), s.notes...)
}

func (s *Stream) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Stream) merge(history []model.Note) {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return
	}

	type entry struct {
		note model.Note
		live bool
	}
	all := make([]entry, 0, len(history)+len(s.pending))
	for _, n := range history {
		all = append(all, entry{note: n})
	}
	for _, n := range s.pending {
		all = append(all, entry{note: n, live: true})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].note.CreatedAt.Before(all[j].note.CreatedAt)
	})

	var buffered []model.Note
	for _, e := range all {
		if _, dup := s.seen[e.note.ID]; dup {
			continue
		}
		s.seen[e.note.ID] = struct{}{}
		s.notes = append(s.notes, e.note)
		if e.live {
			buffered = append(buffered, e.note)
		}
	}
	s.pending = nil
	s.loaded = true
	callbacks := append([]func(model.Note){}, s.onAppend...)
	s.mu.Unlock()

	for _, n := range buffered {
		for _, fn := range callbacks {
			fn(n)
		}
	}
}

func (s *Stream) handleLive(data json.RawMessage) {
	var note model.Note
	if err := json.Unmarshal(data, &note); err != nil {
		s.log.Warn("NOTESTREAM", "Malformed messageSent payload", map[string]interface{}{"error": err.Error()})
		return
	}
	if note.CandidateID != s.candidateID || note.ID == "" {
		return
	}

	s.mu.Lock()
	if s.isKnownLocked(note.ID) {
		s.mu.Unlock()
		return
	}

	var appendCallbacks []func(model.Note)
	if s.loaded {
		s.seen[note.ID] = struct{}{}
		s.notes = append(s.notes, note)
		appendCallbacks = append(appendCallbacks, s.onAppend...)
	} else {
		s.pending = append(s.pending, note)
	}
	mentionCallbacks := append([]func(model.Note){}, s.onMention...)
	s.mu.Unlock()

	for _, fn := range appendCallbacks {
		fn(note)
	}
	if s.username != "" && mention.WasMentioned(note.Content, s.username) {
		for _, fn := range mentionCallbacks {
			fn(note)
		}
	}
}

func (s *Stream) isKnownLocked(id string) bool {
	if _, ok := s.seen[id]; ok {
		return true
	}
	for _, n := range s.pending {
		if n.ID == id {
			return true
		}
	}
	return false
}
