// Package notify delivers user-facing outcome notifications.
//
// Producers emit a [Notification] to a [Sink]; how it is shown (a log line, a
// toast in the TUI, a test recorder) is the sink's business.
package notify

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Severity classifies a notification for presentation.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Notification is one user-facing message.
type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

// Sink receives notifications. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to a [Sink].
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// LogSink writes notifications to a [log.Logger], mapping severity onto level.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a [LogSink].
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(n Notification) {
	switch n.Severity {
	case SeverityError:
		s.logger.Error(n.Title, "detail", n.Description)
	case SeverityWarning:
		s.logger.Warn(n.Title, "detail", n.Description)
	default:
		s.logger.Info(n.Title, "detail", n.Description)
	}
}

// Fanout delivers each notification to every non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(n Notification) {
		for _, s := range out {
			s.Notify(n)
		}
	})
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
