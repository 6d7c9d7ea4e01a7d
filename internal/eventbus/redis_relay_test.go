package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/eventbus"
)

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) listen(e eventbus.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newRelay(t *testing.T, url string) (*eventbus.RedisRelay, *recorder) {
	t.Helper()
	rec := &recorder{}
	local := eventbus.New(1, eventbus.WithLogger(quietLogger()))
	local.Subscribe(rec.listen)
	relay, err := eventbus.NewRedisRelay(context.Background(), url, "test:events", local, quietLogger())
	require.NoError(t, err)
	t.Cleanup(relay.Close)
	return relay, rec
}

func TestRedisRelay_FansOutAcrossProcesses(t *testing.T) {
	srv := miniredis.RunT(t)
	url := "redis://" + srv.Addr()

	api, apiRec := newRelay(t, url)
	_, workerRec := newRelay(t, url)

	api.Publish(eventbus.EventRequestCreated, eventbus.RequestCreatedPayload("r1", "pending", "hi"))

	require.Eventually(t, func() bool { return workerRec.count() == 1 && apiRec.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	workerRec.mu.Lock()
	defer workerRec.mu.Unlock()
	got := workerRec.events[0]
	assert.Equal(t, eventbus.EventRequestCreated, got.Type)
	assert.Equal(t, "r1", got.Payload["id"])
	assert.Equal(t, "hi", got.Payload["message"])
}

func TestRedisRelay_FallsBackToLocalWhenRedisDown(t *testing.T) {
	srv := miniredis.RunT(t)
	relay, rec := newRelay(t, "redis://"+srv.Addr())

	srv.Close()
	relay.Publish(eventbus.EventRequestCreated, eventbus.RequestCreatedPayload("r2", "pending", "x"))

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestRedisRelay_IgnoresMalformedMessages(t *testing.T) {
	srv := miniredis.RunT(t)
	relay, rec := newRelay(t, "redis://"+srv.Addr())

	srv.Publish("test:events", "{not json")
	relay.Publish("after", nil)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "after", rec.events[0].Type)
}

func TestNewRedisRelay_BadURL(t *testing.T) {
	_, err := eventbus.NewRedisRelay(context.Background(), "::nope", "", eventbus.New(1), quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
