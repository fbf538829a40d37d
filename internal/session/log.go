package session

import (
	"errors"
	"time"
)

// ErrStale is returned when a write targets a generation that is no longer current.
var ErrStale = errors.New("stale session generation")

type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogAction  LogType = "action"
	LogError   LogType = "error"
)

// LogEvent is one line of the activity log shown to the user.
type LogEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}

const subscriberBuffer = 64

// Log appends an event for generation gen. Events from a superseded
// generation are dropped and Log reports false.
func (s *Store) Log(gen uint64, typ LogType, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	ev := LogEvent{ID: s.newID(), Timestamp: s.now(), Message: message, Type: typ}
	s.log = append(s.log, ev)
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return true
}

// Subscribe returns a channel receiving every appended log event from now on.
// Delivery is best effort: a subscriber that falls behind misses events. The
// returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan LogEvent, func()) {
	ch := make(chan LogEvent, subscriberBuffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var closed bool
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if closed {
			return
		}
		closed = true
		delete(s.subs, id)
		close(ch)
	}
}
