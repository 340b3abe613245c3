package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "NOTE_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the one Event implementation the services publish.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Handler processes one event. Returning an error asks the bus to redeliver.
type Handler func(ctx context.Context, event Event) error

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber delivers events whose subject matches to handler. Subjects are
// "events.<TYPE>"; a trailing ".>" matches every type.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler Handler) error
}

// Bus is both ends of an event transport.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

const subjectPrefix = "events."

// Subject is the subject an event type is published on.
func Subject(eventType string) string {
	return subjectPrefix + eventType
}

// TypeFromSubject strips the stream prefix from a subject.
func TypeFromSubject(subject string) string {
	if len(subject) > len(subjectPrefix) && subject[:len(subjectPrefix)] == subjectPrefix {
		return subject[len(subjectPrefix):]
	}
	return subject
}

// Matches reports whether subject is selected by pattern ("events.>" or an exact subject).
func Matches(pattern, subject string) bool {
	if pattern == subjectPrefix+">" || pattern == ">" {
		return true
	}
	return pattern == subject
}
