package events

import "time"

const EventNoteCreated = "NOTE_CREATED"

// NoteCreated is the payload of EventNoteCreated.
type NoteCreated struct {
	NoteID           string
	CandidateID      string
	SenderID         string
	Content          string
	MentionedUserIDs []string
	CreatedAt        time.Time
}

func (n NoteCreated) Event() BaseEvent {
	ids := make([]interface{}, 0, len(n.MentionedUserIDs))
	for _, id := range n.MentionedUserIDs {
		ids = append(ids, id)
	}
	return BaseEvent{
		Type: EventNoteCreated,
		Data: map[string]interface{}{
			"note_id":            n.NoteID,
			"candidate_id":       n.CandidateID,
			"sender_id":          n.SenderID,
			"content":            n.Content,
			"mentioned_user_ids": ids,
			"created_at":         n.CreatedAt.Format(time.RFC3339Nano),
		},
		OccurredAt: n.CreatedAt,
	}
}

// NoteCreatedFrom reads the payload back. Payloads that went through JSON carry
// []interface{} for the id list, in-process ones may carry []string.
func NoteCreatedFrom(e Event) NoteCreated {
	p := e.Payload()
	out := NoteCreated{
		NoteID:      stringField(p, "note_id"),
		CandidateID: stringField(p, "candidate_id"),
		SenderID:    stringField(p, "sender_id"),
		Content:     stringField(p, "content"),
	}
	switch ids := p["mentioned_user_ids"].(type) {
	case []string:
		out.MentionedUserIDs = append(out.MentionedUserIDs, ids...)
	case []interface{}:
		for _, id := range ids {
			if s, ok := id.(string); ok {
				out.MentionedUserIDs = append(out.MentionedUserIDs, s)
			}
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, stringField(p, "created_at")); err == nil {
		out.CreatedAt = ts
	} else {
		out.CreatedAt = e.Timestamp()
	}
	return out
}

func stringField(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}
