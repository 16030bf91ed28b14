package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskd-project/taskd/internal/events"
)

func newTestClient() *Client {
	return &Client{
		ID:            "test",
		send:          make(chan []byte, 4),
		subscriptions: make(map[events.EventType]bool),
	}
}

func TestClient_IsSubscribed_EmptyMeansAll(t *testing.T) {
	c := newTestClient()
	assert.True(t, c.IsSubscribed(events.EventTaskStarted))
	assert.True(t, c.IsSubscribed(events.EventDaemonHeartbeat))
}

func TestClient_Subscribe_NarrowsToListed(t *testing.T) {
	c := newTestClient()
	c.Subscribe(events.EventTaskFailed)

	assert.True(t, c.IsSubscribed(events.EventTaskFailed))
	assert.False(t, c.IsSubscribed(events.EventTaskStarted))
}

func TestClient_Unsubscribe(t *testing.T) {
	c := newTestClient()
	c.Subscribe(events.EventTaskFailed)
	c.Subscribe(events.EventTaskStarted)
	c.Unsubscribe(events.EventTaskFailed)

	assert.False(t, c.IsSubscribed(events.EventTaskFailed))
	assert.True(t, c.IsSubscribed(events.EventTaskStarted))
}

func TestClient_SubscribeAll_CoversLifecycleEvents(t *testing.T) {
	c := newTestClient()
	c.SubscribeAll()

	for _, et := range []events.EventType{
		events.EventTaskSubmitted,
		events.EventTaskStarted,
		events.EventTaskPaused,
		events.EventTaskResumed,
		events.EventTaskFinished,
		events.EventTaskFailed,
		events.EventTaskDependencyFailed,
		events.EventDaemonPaused,
		events.EventDaemonResumed,
		events.EventDaemonHeartbeat,
	} {
		assert.True(t, c.IsSubscribed(et), "expected subscription to %s", et)
	}
}
