package eventbus_test

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/eventbus"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishAndReceive(t *testing.T) {
	bus := eventbus.New(2, eventbus.WithLogger(quietLogger()))
	defer bus.Close()

	var received []eventbus.Event
	var mu sync.Mutex

	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	bus.Publish(eventbus.EventRequestCreated, eventbus.RequestCreatedPayload("r1", "pending", "hello"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, eventbus.EventRequestCreated, received[0].Type)
	assert.Equal(t, "r1", received[0].Payload["id"])
	assert.Equal(t, "pending", received[0].Payload["status"])
	assert.Equal(t, "hello", received[0].Payload["message"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMultipleListeners(t *testing.T) {
	bus := eventbus.New(2)
	defer bus.Close()

	var count int32

	for i := 0; i < 3; i++ {
		bus.Subscribe(func(_ eventbus.Event) {
			atomic.AddInt32(&count, 1)
		})
	}

	bus.Publish("multi", nil)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 3 },
		time.Second, 10*time.Millisecond)
}

func TestListenerPanicDoesNotCrash(t *testing.T) {
	bus := eventbus.New(1, eventbus.WithLogger(quietLogger()))
	defer bus.Close()

	var goodCalled int32

	bus.Subscribe(func(_ eventbus.Event) {
		panic("intentional panic in listener")
	})
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&goodCalled, 1)
	})

	bus.Publish("panic.event", nil)

	// The second listener should still have been called.
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&goodCalled) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	bus := eventbus.New(2)

	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})

	for i := 0; i < 5; i++ {
		bus.Publish("evt", nil)
	}

	// Close waits for all workers to finish processing.
	bus.Close()

	assert.EqualValues(t, 5, atomic.LoadInt32(&count))
}

func TestCloseTwiceAndPublishAfterClose(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	bus := eventbus.New(1, eventbus.WithLogger(quietLogger()), eventbus.WithDroppedCounter(dropped))

	bus.Close()
	assert.NotPanics(t, bus.Close)
	assert.NotPanics(t, func() { bus.Publish("late", nil) })
	assert.InDelta(t, 1, testutil.ToFloat64(dropped), 0)
}

func TestBufferFullDropsEvents(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	bus := eventbus.New(1,
		eventbus.WithLogger(quietLogger()),
		eventbus.WithBufferSize(1),
		eventbus.WithDroppedCounter(dropped))

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(func(_ eventbus.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	bus.Publish("first", nil)
	<-started // the worker is now blocked inside the listener
	bus.Publish("second", nil)
	bus.Publish("third", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(dropped), 0)
	close(release)
	bus.Close()
}

func TestDefaultWorkers(t *testing.T) {
	// workers <= 0 should use default without panicking.
	bus := eventbus.New(0)
	require.NotNil(t, bus)
	bus.Close()
}
