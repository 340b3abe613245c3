package session

import (
	"sync"

	"candidate-collab/internal/pkg/logger"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

type logNotifier struct {
	log logger.ILogger
}

// NewLogNotifier writes user-facing messages to the log. It is the default when
// nothing else is configured.
func NewLogNotifier(log logger.ILogger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(message string) {
	n.log.Warn("SESSION", message, nil)
}

// RecordingNotifier keeps every message. Handy in tests and for the CLI,
// which prints them after a command finishes.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *RecordingNotifier) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *RecordingNotifier) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
