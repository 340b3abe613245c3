package client

import (
	"context"
	"net/http"
	"net/url"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/model"
	"candidate-collab/internal/session"
)

// API is the typed REST surface on top of the session transport.
type API struct {
	transport *session.Transport
}

func NewAPI(transport *session.Transport) *API {
	return &API{transport: transport}
}

func (a *API) Notifications(ctx context.Context) ([]model.NotificationRecord, error) {
	var out []model.NotificationRecord
	if err := a.get(ctx, "/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) MarkRead(ctx context.Context, noteID string) error {
	_, err := a.transport.Execute(ctx, session.Operation{
		Method: http.MethodPatch,
		Path:   "/notifications/" + url.PathEscape(noteID) + "/read",
	})
	return err
}

// Notes returns a candidate's thread, oldest first.
func (a *API) Notes(ctx context.Context, candidateID string) ([]model.Note, error) {
	var out []model.Note
	if err := a.get(ctx, "/notes/"+url.PathEscape(candidateID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNote posts a note over REST, for callers without a realtime connection.
func (a *API) CreateNote(ctx context.Context, candidateID, content string) (*model.Note, error) {
	resp, err := a.transport.Execute(ctx, session.Operation{
		Method: http.MethodPost,
		Path:   "/notes",
		Body:   dto.CreateNoteRequest{CandidateId: candidateID, Content: content},
	})
	if err != nil {
		return nil, err
	}
	var note model.Note
	if err := resp.Decode(&note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (a *API) Users(ctx context.Context) ([]model.DirectoryEntry, error) {
	var out []model.DirectoryEntry
	if err := a.get(ctx, "/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) get(ctx context.Context, path string, v interface{}) error {
	resp, err := a.transport.Execute(ctx, session.Operation{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return resp.Decode(v)
}
