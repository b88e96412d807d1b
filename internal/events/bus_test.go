package events

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBusPublishDeliversToSubscriber tests basic publish/subscribe delivery
func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan *Event, 1)
	bus.Subscribe(RunCompleted, func(event *Event) {
		received <- event
	})

	bus.Emit("optimizer", &RunCompletedData{
		RunID:          "run_123",
		SharpeRatio:    1.42,
		FrontierPoints: 50,
	})

	select {
	case event := <-received:
		assert.Equal(t, RunCompleted, event.Type)
		assert.Equal(t, "optimizer", event.Module)
		assert.False(t, event.Timestamp.IsZero())

		data, ok := event.Data.(*RunCompletedData)
		require.True(t, ok, "Event data should be RunCompletedData")
		assert.Equal(t, "run_123", data.RunID)
		assert.Equal(t, 1.42, data.SharpeRatio)
		assert.Equal(t, 50, data.FrontierPoints)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected RunCompleted event not received")
	}
}

// TestBusPublishFiltersByType tests that handlers only see their own type
func TestBusPublishFiltersByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	runEvents := make(chan *Event, 2)
	syncEvents := make(chan *Event, 2)
	bus.Subscribe(RunStarted, func(event *Event) { runEvents <- event })
	bus.Subscribe(SyncCompleted, func(event *Event) { syncEvents <- event })

	bus.Emit("optimizer", &RunStartedData{RunID: "run_1", Points: 50})
	bus.Emit("sync", &SyncCompletedData{Symbols: 4, Bars: 1000})

	select {
	case event := <-runEvents:
		assert.Equal(t, RunStarted, event.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected RunStarted event not received")
	}

	select {
	case event := <-syncEvents:
		assert.Equal(t, SyncCompleted, event.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected SyncCompleted event not received")
	}

	assert.Empty(t, runEvents, "RunStarted handler should not see SyncCompleted")
	assert.Empty(t, syncEvents, "SyncCompleted handler should not see RunStarted")
}

// TestBusMultipleSubscribers tests that all subscribers of a type get each event
func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	counts := make(map[string]int)
	for _, name := range []string{"a", "b", "c"} {
		name := name
		bus.Subscribe(SyncStarted, func(event *Event) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		})
	}

	bus.Emit("sync", &SyncStartedData{Symbols: []string{"AAPL"}})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, counts)
}

// TestBusUnsubscribe tests that unsubscribed handlers stop receiving events
func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan *Event, 2)
	id := bus.Subscribe(RunFailed, func(event *Event) { received <- event })

	bus.Emit("optimizer", &RunFailedData{RunID: "run_1", Error: "solver diverged"})
	require.Len(t, received, 1)
	<-received

	bus.Unsubscribe(RunFailed, id)
	bus.Emit("optimizer", &RunFailedData{RunID: "run_2", Error: "solver diverged"})

	assert.Empty(t, received, "Unsubscribed handler should not receive events")
}

// TestBusUnsubscribeUnknownID tests that removing an unknown ID is a no-op
func TestBusUnsubscribeUnknownID(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan *Event, 1)
	bus.Subscribe(RunStarted, func(event *Event) { received <- event })

	bus.Unsubscribe(RunStarted, 999)
	bus.Emit("optimizer", &RunStartedData{RunID: "run_1"})

	assert.Len(t, received, 1)
}

// TestBusPublishWithoutSubscribers tests that publishing with no handlers is safe
func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	assert.NotPanics(t, func() {
		bus.Emit("backup", &BackupCompletedData{Key: "backups/test.tar.gz"})
		bus.Publish(nil)
	})
}

// TestBusConcurrentPublish tests concurrent publishers against a single subscriber
func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(SyncCompleted, func(event *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit("sync", &SyncCompletedData{Symbols: 1})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}
