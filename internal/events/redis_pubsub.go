package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskd-project/taskd/internal/logger"
)

const channelPrefix = "taskd:events:"

// RedisPubSub mirrors task events to Redis Pub/Sub. It is entirely
// optional observability plumbing: spec.md's daemon runs correctly with
// a nil *redis.Client, in which case Publish/Heartbeat are no-ops. This
// is the new home for the connection this module's lineage used to
// drive a distributed worker pool; here it never touches scheduling,
// only mirrors what already happened.
type RedisPubSub struct {
	client      *redis.Client
	subscribers map[string]*redis.PubSub
	mu          sync.RWMutex
}

// NewRedisPubSub creates a publisher backed by an existing Redis client.
// Pass nil to disable Redis mirroring entirely.
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client:      client,
		subscribers: make(map[string]*redis.PubSub),
	}
}

// Publish mirrors an event to Redis. A no-op when no client is configured.
func (r *RedisPubSub) Publish(ctx context.Context, event *Event) error {
	if r.client == nil {
		return nil
	}

	channel := r.channelName(event.Type)
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.Debug().
		Str("event_type", string(event.Type)).
		Str("channel", channel).
		Msg("event published")

	return nil
}

// Subscribe subscribes to events of the given types.
func (r *RedisPubSub) Subscribe(ctx context.Context, eventTypes ...EventType) (<-chan *Event, error) {
	if r.client == nil {
		eventCh := make(chan *Event)
		close(eventCh)
		return eventCh, nil
	}

	channels := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		channels[i] = r.channelName(et)
	}

	pubsub := r.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	r.mu.Lock()
	r.subscribers[fmt.Sprintf("%p", pubsub)] = pubsub
	r.mu.Unlock()

	eventCh := make(chan *Event, 100)
	go r.relay(ctx, pubsub, eventCh)
	return eventCh, nil
}

func (r *RedisPubSub) relay(ctx context.Context, pubsub *redis.PubSub, eventCh chan *Event) {
	defer close(eventCh)
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			event, err := FromJSON([]byte(msg.Payload))
			if err != nil {
				logger.Error().Err(err).Msg("failed to parse event")
				continue
			}

			select {
			case eventCh <- event:
			default:
				logger.Warn().
					Str("event_type", string(event.Type)).
					Msg("event channel full, dropping event")
			}
		}
	}
}

// Close closes all subscriptions.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pubsub := range r.subscribers {
		pubsub.Close()
	}
	r.subscribers = make(map[string]*redis.PubSub)
	return nil
}

func (r *RedisPubSub) channelName(eventType EventType) string {
	return channelPrefix + string(eventType)
}

// PublishTaskEvent is a helper to publish task lifecycle events.
func (r *RedisPubSub) PublishTaskEvent(ctx context.Context, eventType EventType, taskID int, command, group string, extra map[string]interface{}) error {
	event := NewEvent(eventType, TaskEventData(taskID, command, group, extra))
	return r.Publish(ctx, event)
}

// Heartbeat publishes a liveness heartbeat every interval until ctx is
// cancelled. This is the re-homed equivalent of the worker pool's
// Redis-backed liveness registration: instead of announcing a worker's
// presence to a coordinator, the daemon announces its own pulse to
// anyone mirroring events, useful for an external watchdog that expects
// to see one within a known period.
func (r *RedisPubSub) Heartbeat(ctx context.Context, interval time.Duration, snapshot func() (running int, groups map[string]uint)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			running, groups := snapshot()
			event := NewEvent(EventDaemonHeartbeat, HeartbeatData(running, groups))
			if err := r.Publish(ctx, event); err != nil {
				logger.Warn().Err(err).Msg("failed to publish heartbeat")
			}
		}
	}
}
