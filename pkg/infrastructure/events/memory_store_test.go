package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	received []Event
	done     chan struct{}
	err      error
}

func newRecordingHandler(expected int) *recordingHandler {
	h := &recordingHandler{done: make(chan struct{}, expected)}
	return h
}

func (h *recordingHandler) Handle(_ context.Context, event Event) error {
	h.mu.Lock()
	h.received = append(h.received, event)
	h.mu.Unlock()
	h.done <- struct{}{}
	return h.err
}

func (h *recordingHandler) CanHandle(string) bool { return true }

func (h *recordingHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func TestInMemoryEventStore_VersionsPerStream(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(nil)

	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(LotReservedEvent, "D1", LotReserved{})))
	require.NoError(t, store.AppendEvent(ctx, "D2", NewEvent(LotReservedEvent, "D2", LotReserved{})))
	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(DemandStateChangedEvent, "D1", DemandStateChanged{DemandID: "D1"})))

	d1, err := store.ReadEvents("D1", 0)
	require.NoError(t, err)
	require.Len(t, d1, 2)
	assert.Equal(t, 1, d1[0].Version())
	assert.Equal(t, 2, d1[1].Version())
	assert.Equal(t, DemandStateChangedEvent, d1[1].Type())

	fromTwo, err := store.ReadEvents("D1", 2)
	require.NoError(t, err)
	assert.Len(t, fromTwo, 1)

	missing, err := store.ReadEvents("D9", 1)
	require.NoError(t, err)
	assert.Empty(t, missing)

	all, err := store.ReadAllEvents(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tail, err := store.ReadAllEvents(5)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestInMemoryEventStore_NotifiesSubscribers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(nil)
	handler := newRecordingHandler(2)
	handler.err = errors.New("handler failure is only logged")
	require.NoError(t, store.Subscribe([]string{ShortageIdentifiedEvent}, handler))

	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(ShortageIdentifiedEvent, "D1", ShortageIdentified{DemandID: "D1"})))
	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(LotReservedEvent, "D1", LotReserved{})))
	require.NoError(t, store.AppendEvent(ctx, "D2", NewEvent(ShortageIdentifiedEvent, "D2", ShortageIdentified{DemandID: "D2"})))

	handler.wait(t, 2)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	for _, e := range handler.received {
		assert.Equal(t, ShortageIdentifiedEvent, e.Type())
	}
}

func TestInMemoryEventStore_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(nil)
	handler := newRecordingHandler(1)
	require.NoError(t, store.Subscribe([]string{DemandDeferredEvent}, handler))
	require.NoError(t, store.Unsubscribe(handler))

	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(DemandDeferredEvent, "D1", DemandDeferred{DemandID: "D1"})))

	select {
	case <-handler.done:
		t.Fatal("unsubscribed handler received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryEventStore_DeliversStreamInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(nil)
	handler := newRecordingHandler(400)
	require.NoError(t, store.Subscribe(AllocationEventTypes, handler))

	for i := 0; i < 200; i++ {
		for _, id := range []string{"D1", "D2"} {
			eventType := AllocationEventTypes[i%len(AllocationEventTypes)]
			require.NoError(t, store.AppendEvent(ctx, id, NewEvent(eventType, id, fmt.Sprintf("%s-%d", id, i))))
		}
	}
	store.Wait()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.received, 400)

	next := map[string]int{"D1": 1, "D2": 1}
	for _, e := range handler.received {
		require.Equal(t, next[e.StreamID()], e.Version(), "stream %s delivered out of order", e.StreamID())
		assert.Equal(t, fmt.Sprintf("%s-%d", e.StreamID(), e.Version()-1), e.Data())
		next[e.StreamID()]++
	}
}

type ctxKey struct{}

type contextHandler struct {
	values chan interface{}
	errs   chan error
}

func (h *contextHandler) Handle(ctx context.Context, _ Event) error {
	h.values <- ctx.Value(ctxKey{})
	h.errs <- ctx.Err()
	return nil
}

func (h *contextHandler) CanHandle(string) bool { return true }

func TestInMemoryEventStore_HandlerKeepsContextValues(t *testing.T) {
	store := NewInMemoryEventStore(nil)
	handler := &contextHandler{values: make(chan interface{}, 1), errs: make(chan error, 1)}
	require.NoError(t, store.Subscribe([]string{LotReservedEvent}, handler))

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "trace"))
	cancel()
	require.NoError(t, store.AppendEvent(ctx, "D1", NewEvent(LotReservedEvent, "D1", LotReserved{})))
	store.Wait()

	assert.Equal(t, "trace", <-handler.values)
	assert.NoError(t, <-handler.errs, "a cancelled caller must not cancel delivery")
}
