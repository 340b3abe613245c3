package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"candidate-collab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu        sync.Mutex
	list      []model.NotificationRecord
	listErr   error
	markErr   error
	marked    []string
	listCalls int
}

func (f *fakeAPI) Notifications(ctx context.Context) ([]model.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]model.NotificationRecord(nil), f.list...), f.listErr
}

func (f *fakeAPI) MarkRead(ctx context.Context, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, noteID)
	return nil
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, read bool, minutes int) model.NotificationRecord {
	return model.NotificationRecord{
		NoteID:      id,
		CandidateID: "cand-" + id,
		Content:     "note " + id,
		CreatedAt:   base.Add(time.Duration(minutes) * time.Minute),
		IsRead:      read,
	}
}

func TestIngestDedupes(t *testing.T) {
	tests := []struct {
		name       string
		held       []model.NotificationRecord
		incoming   []model.NotificationRecord
		wantIDs    []string
		wantUnread int
	}{
		{
			name:       "first occurrence wins",
			incoming:   []model.NotificationRecord{rec("a", false, 1), rec("a", false, 2), rec("b", false, 3)},
			wantIDs:    []string{"a", "b"},
			wantUnread: 2,
		},
		{
			name:       "input order kept over createdAt",
			incoming:   []model.NotificationRecord{rec("a", false, 1), rec("b", false, 2), rec("a", false, 3)},
			wantIDs:    []string{"a", "b"},
			wantUnread: 2,
		},
		{
			name:       "duplicate upgrades to read",
			incoming:   []model.NotificationRecord{rec("a", false, 1), rec("a", true, 1)},
			wantIDs:    []string{"a"},
			wantUnread: 0,
		},
		{
			name:       "duplicate never downgrades",
			held:       []model.NotificationRecord{rec("a", true, 1)},
			incoming:   []model.NotificationRecord{rec("a", false, 1)},
			wantIDs:    []string{"a"},
			wantUnread: 0,
		},
		{
			name:       "held record counts as earlier",
			held:       []model.NotificationRecord{rec("a", false, 1)},
			incoming:   []model.NotificationRecord{rec("b", false, 2), rec("a", false, 9)},
			wantIDs:    []string{"a", "b"},
			wantUnread: 2,
		},
		{
			name:       "empty note id skipped",
			incoming:   []model.NotificationRecord{{Content: "orphan"}},
			wantIDs:    []string{},
			wantUnread: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(&fakeAPI{})
			s.Ingest(tt.held)
			got := s.Ingest(tt.incoming)

			ids := []string{}
			for _, r := range got {
				ids = append(ids, r.NoteID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantUnread, s.Unread())
		})
	}
}

func TestIngestKeepsFirstContent(t *testing.T) {
	s := NewStore(&fakeAPI{})
	first := rec("a", false, 1)
	second := rec("a", false, 1)
	second.Content = "changed"

	s.Ingest([]model.NotificationRecord{first})
	s.Ingest([]model.NotificationRecord{second})

	require.Len(t, s.Records(), 1)
	assert.Equal(t, "note a", s.Records()[0].Content)
}

func TestMarkReadAppliesAfterAck(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	var counts []int
	s.OnUnreadChange(func(n int) { counts = append(counts, n) })
	s.Ingest([]model.NotificationRecord{rec("a", false, 1), rec("b", false, 2)})

	unread, err := s.MarkRead(context.Background(), "a")

	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	assert.Equal(t, []string{"a"}, api.marked)
	assert.Equal(t, []int{2, 1}, counts)
}

func TestMarkReadFailureLeavesStateAlone(t *testing.T) {
	api := &fakeAPI{markErr: errors.New("boom")}
	s := NewStore(api)
	s.Ingest([]model.NotificationRecord{rec("a", false, 1)})
	var calls int
	s.OnUnreadChange(func(int) { calls++ })

	unread, err := s.MarkRead(context.Background(), "a")

	assert.Error(t, err)
	assert.Equal(t, 1, unread)
	assert.False(t, s.Records()[0].IsRead)
	assert.Zero(t, calls)
}

func TestOpenNavigatesEvenWhenMarkFails(t *testing.T) {
	api := &fakeAPI{markErr: errors.New("offline")}
	var navigated []string
	s := NewStore(api, WithNavigator(func(candidateID, noteID string) {
		navigated = append(navigated, candidateID+"/"+noteID)
	}))
	s.Ingest([]model.NotificationRecord{rec("a", false, 1)})

	err := s.Open(context.Background(), "a")

	assert.Error(t, err)
	assert.Equal(t, []string{"cand-a/a"}, navigated)
	assert.Equal(t, 1, s.Unread())
}

func TestOpenReadRecordSkipsServer(t *testing.T) {
	api := &fakeAPI{}
	var navigated int
	s := NewStore(api, WithNavigator(func(string, string) { navigated++ }))
	s.Ingest([]model.NotificationRecord{rec("a", true, 1)})

	require.NoError(t, s.Open(context.Background(), "a"))
	assert.Empty(t, api.marked)
	assert.Equal(t, 1, navigated)

	assert.ErrorIs(t, s.Open(context.Background(), "zzz"), ErrUnknownNotification)
}

func TestHandleNotifyCountsOnce(t *testing.T) {
	api := &fakeAPI{list: []model.NotificationRecord{rec("n1", false, 1)}}
	s := NewStore(api)
	var counts []int
	s.OnUnreadChange(func(n int) { counts = append(counts, n) })

	p := model.NotifyPayload{CandidateID: "cand-n1", NoteID: "n1"}
	require.NoError(t, s.HandleNotify(context.Background(), p))
	require.NoError(t, s.HandleNotify(context.Background(), p))

	assert.Equal(t, 1, s.Unread())
	assert.Equal(t, []int{1}, counts)
	assert.Equal(t, 1, api.listCalls)
}

func TestHandleNotifyPlaceholderWhenServerLags(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("timeout")}
	s := NewStore(api)

	err := s.HandleNotify(context.Background(), model.NotifyPayload{CandidateID: "c9", NoteID: "n9"})

	assert.Error(t, err)
	require.True(t, s.Known("n9"))
	assert.Equal(t, 1, s.Unread())
	assert.Equal(t, "c9", s.Records()[0].CandidateID)

	assert.Empty(t, s.Records()[0].Content)

	// The real record replaces the stand-in without adding a second unread.
	real := rec("n9", false, 1)
	real.SenderUsername = "alice"
	real.CandidateName = "Jane Doe"
	api.listErr = nil
	api.list = []model.NotificationRecord{real}
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, s.Unread())
	assert.Equal(t, []model.NotificationRecord{real}, s.Records())

	// Once replaced, later copies no longer overwrite it.
	changed := real
	changed.Content = "edited"
	s.Ingest([]model.NotificationRecord{changed})
	assert.Equal(t, "note n9", s.Records()[0].Content)
}

func TestStandInKeepsLocalRead(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("timeout")}
	s := NewStore(api)
	_ = s.HandleNotify(context.Background(), model.NotifyPayload{CandidateID: "c9", NoteID: "n9"})

	_, err := s.MarkRead(context.Background(), "n9")
	require.NoError(t, err)

	api.listErr = nil
	api.list = []model.NotificationRecord{rec("n9", false, 1)}
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, 0, s.Unread())
	assert.True(t, s.Records()[0].IsRead)
	assert.Equal(t, "note n9", s.Records()[0].Content)
}

func TestConcurrentNotifySameNote(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.HandleNotify(context.Background(), model.NotifyPayload{NoteID: "n1"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Unread())
	assert.Len(t, s.Records(), 1)
}
