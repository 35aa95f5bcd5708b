package session

import (
	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
)

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventState    EventKind = "state"
	EventPlayback EventKind = "playback"
)

// Event is one notification to session observers. Only the field matching Kind is set,
// except State which always carries the session state at the time of the event.
type Event struct {
	Kind     EventKind          `json:"kind"`
	State    State              `json:"state"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
	Playback *playback.State    `json:"playback,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Subscribe returns a channel of events and a function that ends the subscription.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 64)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) publishLocked(ev Event) {
	ev.State = s.state
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			logger.Debug("session subscriber lagging, event dropped",
				logger.String("session", s.id),
				logger.String("kind", string(ev.Kind)),
			)
		}
	}
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	logger.Info("session state changed",
		logger.String("session", s.id),
		logger.String("from", s.state.String()),
		logger.String("to", next.String()),
	)
	s.state = next
	ev := Event{Kind: EventState}
	if s.err != nil {
		ev.Error = s.err.Message
	}
	s.publishLocked(ev)
}
