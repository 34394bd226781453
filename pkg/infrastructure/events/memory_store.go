package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventStore keeps allocation events per demand stream and fans them
// out to subscribers asynchronously. Each stream is drained by at most one
// goroutine at a time, so a handler sees the events of a stream in append
// order while distinct streams are delivered concurrently.
type InMemoryEventStore struct {
	streams     map[string][]Event
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	position    int
	allEvents   []Event
	logger      *slog.Logger
	pending     sync.WaitGroup
	queues      map[string][]delivery
}

type delivery struct {
	ctx   context.Context
	event Event
}

func NewInMemoryEventStore(logger *slog.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		logger:      logger,
		queues:      make(map[string][]delivery),
	}
}

// Verify interface compliance
var _ EventStore = (*InMemoryEventStore)(nil)

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, streamID string, event Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.streams[streamID] == nil {
		s.streams[streamID] = make([]Event, 0)
	}

	eventWithVersion := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}

	s.streams[streamID] = append(s.streams[streamID], eventWithVersion)
	s.allEvents = append(s.allEvents, eventWithVersion)
	s.position++

	// handlers outlive the caller's request; keep its values, drop its deadline
	s.pending.Add(1)
	queue, draining := s.queues[streamID]
	s.queues[streamID] = append(queue, delivery{ctx: context.WithoutCancel(ctx), event: eventWithVersion})
	if !draining {
		go s.drain(streamID)
	}

	return nil
}

func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(events) {
		return []Event{}, nil
	}

	return append([]Event(nil), events[fromVersion-1:]...), nil
}

func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}

	if fromPosition >= len(s.allEvents) {
		return []Event{}, nil
	}

	return append([]Event(nil), s.allEvents[fromPosition:]...), nil
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		if s.subscribers[eventType] == nil {
			s.subscribers[eventType] = make([]EventHandler, 0)
		}
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0)
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}

// Wait blocks until every event appended so far has been delivered
func (s *InMemoryEventStore) Wait() {
	s.pending.Wait()
}

// drain delivers the queued events of one stream in order and exits once the
// queue is empty. A stream has a queue entry exactly while it is draining.
func (s *InMemoryEventStore) drain(streamID string) {
	for {
		s.mutex.Lock()
		queue := s.queues[streamID]
		if len(queue) == 0 {
			delete(s.queues, streamID)
			s.mutex.Unlock()
			return
		}
		next := queue[0]
		s.queues[streamID] = queue[1:]
		handlers := append([]EventHandler(nil), s.subscribers[next.event.Type()]...)
		s.mutex.Unlock()

		s.notifySubscribers(next, handlers)
		s.pending.Done()
	}
}

func (s *InMemoryEventStore) notifySubscribers(d delivery, handlers []EventHandler) {
	for _, handler := range handlers {
		if !handler.CanHandle(d.event.Type()) {
			continue
		}
		if err := handler.Handle(d.ctx, d.event); err != nil {
			s.logger.Error("event handler failed",
				slog.String("event_type", d.event.Type()),
				slog.String("stream_id", d.event.StreamID()),
				slog.Any("error", err))
		}
	}
}
