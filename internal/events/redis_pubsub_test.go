package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisPubSub(t *testing.T) {
	pubsub := NewRedisPubSub(nil)

	assert.NotNil(t, pubsub)
	assert.Nil(t, pubsub.client)
	assert.NotNil(t, pubsub.subscribers)
	assert.Len(t, pubsub.subscribers, 0)
}

func TestRedisPubSub_channelName(t *testing.T) {
	pubsub := NewRedisPubSub(nil)

	tests := []struct {
		eventType EventType
		expected  string
	}{
		{EventTaskSubmitted, "taskd:events:task.submitted"},
		{EventTaskStarted, "taskd:events:task.started"},
		{EventTaskFinished, "taskd:events:task.finished"},
		{EventTaskFailed, "taskd:events:task.failed"},
		{EventTaskDependencyFailed, "taskd:events:task.dependency_failed"},
		{EventDaemonHeartbeat, "taskd:events:daemon.heartbeat"},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			channel := pubsub.channelName(tc.eventType)
			assert.Equal(t, tc.expected, channel)
		})
	}
}

func TestRedisPubSub_Close_EmptySubscribers(t *testing.T) {
	pubsub := NewRedisPubSub(nil)

	err := pubsub.Close()
	assert.NoError(t, err)
	assert.Len(t, pubsub.subscribers, 0)
}

func TestChannelPrefix(t *testing.T) {
	assert.Equal(t, "taskd:events:", channelPrefix)
}

func TestRedisPubSub_Publish_NilClientIsNoop(t *testing.T) {
	pubsub := NewRedisPubSub(nil)
	event := NewEvent(EventTaskSubmitted, TaskEventData(1, "true", "default", nil))
	assert.NoError(t, pubsub.Publish(context.Background(), event))
}

func TestRedisPubSub_Subscribe_NilClientReturnsClosedChannel(t *testing.T) {
	pubsub := NewRedisPubSub(nil)
	ch, err := pubsub.Subscribe(context.Background(), EventTaskSubmitted)
	assert.NoError(t, err)

	_, ok := <-ch
	assert.False(t, ok, "channel must already be closed when no client is configured")
}

func TestRedisPubSub_Heartbeat_NilClientDoesNotPanic(t *testing.T) {
	pubsub := NewRedisPubSub(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	pubsub.Heartbeat(ctx, 10*time.Millisecond, func() (int, map[string]uint) {
		return 0, nil
	})
}
