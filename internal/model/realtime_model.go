package model

import "encoding/json"

// Realtime event names shared by the hub and the client channel.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventMessageSent = "messageSent"
	EventNotify      = "notify"
	EventError       = "error"
)

// SendMessagePayload is the body of the outbound "sendMessage" event.
type SendMessagePayload struct {
	CandidateID string `json:"candidateId"`
	Content     string `json:"content"`
	SenderID    string `json:"senderId"`
}

// Envelope is one realtime event on the wire. A frame may carry several
// envelopes back to back.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload as the data of event.
func NewEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
