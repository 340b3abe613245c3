// Package notification keeps the client's view of mention notifications and
// their unread count.
package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
)

var ErrUnknownNotification = errors.New("notification: unknown note id")

// API is the slice of the REST client the store needs.
type API interface {
	Notifications(ctx context.Context) ([]model.NotificationRecord, error)
	MarkRead(ctx context.Context, noteID string) error
}

// Navigator opens the note thread of a candidate, focused on one note.
type Navigator func(candidateID, noteID string)

// Store holds at most one record per note id. Read state only moves forward,
// and local state changes only after the server acknowledged a read.
type Store struct {
	api      API
	navigate Navigator
	log      logger.ILogger

	mu        sync.Mutex
	records   map[string]model.NotificationRecord
	order     []string
	stand     map[string]struct{}
	unread    int
	listeners []func(int)
}

type Option func(*Store)

func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.navigate = n }
}

func WithLogger(log logger.ILogger) Option {
	return func(s *Store) { s.log = log }
}

func NewStore(api API, opts ...Option) *Store {
	s := &Store{
		api:      api,
		navigate: func(string, string) {},
		log:      logger.NewNopLogger(),
		records:  make(map[string]model.NotificationRecord),
		stand:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnUnreadChange registers fn to run with the new count whenever it changes.
func (s *Store) OnUnreadChange(fn func(unread int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Ingest merges records into the store and returns every held record in the
// order it first arrived. The first occurrence of a note id wins, counting
// records already held; a later duplicate can only mark it read. A stand-in
// created by HandleNotify is replaced by the first server copy.
func (s *Store) Ingest(records []model.NotificationRecord) []model.NotificationRecord {
	s.mu.Lock()
	s.mergeLocked(records, false)
	fire := s.settleLocked()
	out := s.arrivalLocked()
	s.mu.Unlock()

	fire()
	return out
}

func (s *Store) mergeLocked(records []model.NotificationRecord, standIn bool) {
	for _, r := range records {
		if r.NoteID == "" {
			continue
		}
		held, ok := s.records[r.NoteID]
		if !ok {
			s.records[r.NoteID] = r
			s.order = append(s.order, r.NoteID)
			if standIn {
				s.stand[r.NoteID] = struct{}{}
			}
			continue
		}
		if _, isStandIn := s.stand[r.NoteID]; isStandIn && !standIn {
			r.IsRead = r.IsRead || held.IsRead
			s.records[r.NoteID] = r
			delete(s.stand, r.NoteID)
			continue
		}
		if r.IsRead && !held.IsRead {
			held.IsRead = true
			s.records[r.NoteID] = held
		}
	}
}

// MarkRead asks the server to mark noteID read and applies it locally only
// once the server agreed. It returns the resulting unread count.
func (s *Store) MarkRead(ctx context.Context, noteID string) (int, error) {
	if err := s.api.MarkRead(ctx, noteID); err != nil {
		s.log.Error("NOTIFICATION", "Failed to mark notification as read", map[string]interface{}{
			"note_id": noteID,
			"error":   err.Error(),
		})
		return s.Unread(), err
	}

	s.mu.Lock()
	if r, ok := s.records[noteID]; ok && !r.IsRead {
		r.IsRead = true
		s.records[noteID] = r
	}
	fire := s.settleLocked()
	unread := s.unread
	s.mu.Unlock()

	fire()
	return unread, nil
}

// Open marks the notification read when it is not already, then navigates to
// its thread. A failed mark does not stop navigation.
func (s *Store) Open(ctx context.Context, noteID string) error {
	s.mu.Lock()
	r, ok := s.records[noteID]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownNotification
	}

	var markErr error
	if !r.IsRead {
		_, markErr = s.MarkRead(ctx, noteID)
	}
	s.navigate(r.CandidateID, r.NoteID)
	return markErr
}

// Refresh pulls the server list and ingests it.
func (s *Store) Refresh(ctx context.Context) error {
	records, err := s.api.Notifications(ctx)
	if err != nil {
		return err
	}
	s.Ingest(records)
	return nil
}

// HandleNotify reacts to a notify event. Known note ids are ignored so
// redelivery never counts twice. Unknown ones trigger a Refresh; if the server
// still does not list the note, a placeholder unread record stands in for it.
func (s *Store) HandleNotify(ctx context.Context, p model.NotifyPayload) error {
	if p.NoteID == "" || s.Known(p.NoteID) {
		return nil
	}

	err := s.Refresh(ctx)
	if err != nil {
		s.log.Warn("NOTIFICATION", "Refresh after notify failed", map[string]interface{}{
			"note_id": p.NoteID,
			"error":   err.Error(),
		})
	}
	s.mu.Lock()
	s.mergeLocked([]model.NotificationRecord{{
		NoteID:      p.NoteID,
		CandidateID: p.CandidateID,
		CreatedAt:   time.Now().UTC(),
	}}, true)
	fire := s.settleLocked()
	s.mu.Unlock()

	fire()
	return err
}

func (s *Store) Known(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[noteID]
	return ok
}

func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Records returns the held records, newest first.
func (s *Store) Records() []model.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) arrivalLocked() []model.NotificationRecord {
	out := make([]model.NotificationRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *Store) snapshotLocked() []model.NotificationRecord {
	out := s.arrivalLocked()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// settleLocked recomputes the unread count and returns the listener call to
// make after the lock is released.
func (s *Store) settleLocked() func() {
	unread := 0
	for _, r := range s.records {
		if !r.IsRead {
			unread++
		}
	}
	if unread == s.unread {
		return func() {}
	}
	s.unread = unread
	listeners := append([]func(int){}, s.listeners...)
	return func() {
		for _, fn := range listeners {
			fn(unread)
		}
	}
}
