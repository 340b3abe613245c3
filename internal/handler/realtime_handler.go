package handler

import (
	"context"
	"encoding/json"
	"errors"

	"candidate-collab/internal/dto"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/repository/contract"
	"candidate-collab/internal/service"
	internalWS "candidate-collab/internal/websocket"

	"github.com/google/uuid"
)

var errMalformedPayload = errors.New("malformed sendMessage payload")

// RealtimeHandler serves the client-sent events the hub does not handle itself.
type RealtimeHandler struct {
	notes  service.INoteService
	users  contract.UserRepository
	logger logger.ILogger
}

func NewRealtimeHandler(notes service.INoteService, users contract.UserRepository, log logger.ILogger) *RealtimeHandler {
	return &RealtimeHandler{notes: notes, users: users, logger: log}
}

// Register installs the sendMessage handler and the join check on hub.
func (h *RealtimeHandler) Register(hub *internalWS.Hub) {
	hub.Handle(model.EventSendMessage, h.SendMessage)
	hub.AuthorizeRooms(h.CanJoin)
}

// SendMessage stores a note as the connection's user. The senderId in the
// payload is informational; it never overrides the authenticated user.
func (h *RealtimeHandler) SendMessage(ctx context.Context, c *internalWS.Client, data json.RawMessage) error {
	var p model.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errMalformedPayload
	}
	if p.SenderID != "" && p.SenderID != c.UserID.String() {
		h.logger.Warn("RealtimeHandler", "sendMessage senderId does not match connection", map[string]interface{}{
			"user_id":   c.UserID,
			"sender_id": p.SenderID,
		})
	}

	_, err := h.notes.Create(ctx, c.UserID, &dto.CreateNoteRequest{CandidateId: p.CandidateID, Content: p.Content})
	return err
}

// CanJoin lets a connection into any room except another user's personal room.
func (h *RealtimeHandler) CanJoin(ctx context.Context, c *internalWS.Client, room string) bool {
	if room == c.UserID.String() {
		return true
	}
	id, err := uuid.Parse(room)
	if err != nil {
		return true
	}
	u, err := h.users.FindByID(ctx, id)
	if err != nil {
		return false
	}
	return u == nil
}
