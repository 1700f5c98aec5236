package chat

import (
	"sync"

	"github.com/windward-labs/tripsmith/pkg/model"
)

// EventSink collects progress notifications for one turn and exposes them as
// an ordered channel. It implements tool.Reporter so running tools can push
// structured events and raw log lines without any process-wide stream
// substitution; each turn owns its own sink.
//
// The internal queue is unbounded so Emit never blocks a running tool and
// never loses an event; the turn-scoped lifetime bounds it in practice.
type EventSink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []model.UIEvent
	closed bool
	ch     chan model.UIEvent
}

func NewEventSink() *EventSink {
	s := &EventSink{
		ch: make(chan model.UIEvent),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.dispatch()
	return s
}

// Emit queues a structured event. Events arriving after Close are dropped.
func (s *EventSink) Emit(ev model.UIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, ev)
	s.cond.Signal()
}

// Log queues a raw output line, expanding any embedded structured occurrences
// into individual events. A plain line becomes a generic tool_log event.
func (s *EventSink) Log(line string) {
	for _, ev := range model.ParseLogLine(line) {
		s.Emit(ev)
	}
}

// Events returns the receive side of the sink. The channel closes when the
// turn finishes.
func (s *EventSink) Events() <-chan model.UIEvent {
	return s.ch
}

// Close seals the sink. Idempotent; pending events remain readable until the
// channel drains.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Signal()
}

// dispatch moves queued events to the output channel in FIFO order, closing
// the channel once the sink is sealed and the queue is empty.
func (s *EventSink) dispatch() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.ch <- ev
	}
}
