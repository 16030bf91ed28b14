// Package events defines the task lifecycle event stream consumers of
// the daemon (the websocket hub, an optional Redis mirror) can observe.
// None of it feeds back into scheduling: spec.md's non-goal on
// distributed execution means events are strictly an observability
// side channel the handler emits to, never reads from.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies what happened to a task.
type EventType string

const (
	EventTaskSubmitted        EventType = "task.submitted"
	EventTaskStarted          EventType = "task.started"
	EventTaskPaused           EventType = "task.paused"
	EventTaskResumed          EventType = "task.resumed"
	EventTaskFinished         EventType = "task.finished"
	EventTaskFailed           EventType = "task.failed"
	EventTaskDependencyFailed EventType = "task.dependency_failed"
	EventDaemonPaused         EventType = "daemon.paused"
	EventDaemonResumed        EventType = "daemon.resumed"
	EventDaemonHeartbeat      EventType = "daemon.heartbeat"
)

// Event is one point-in-time occurrence in the task handler.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates a new event with the timestamp set to now.
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event.
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Publisher is anything that can broadcast and replay task events. The
// websocket hub and the optional Redis mirror both implement it.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Subscribe(ctx context.Context, eventTypes ...EventType) (<-chan *Event, error)
	Close() error
}

// TaskEventData builds the Data payload for a task lifecycle event.
func TaskEventData(taskID int, command, group string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"task_id": taskID,
		"command": command,
		"group":   group,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// HeartbeatData builds the Data payload for a daemon liveness heartbeat.
func HeartbeatData(runningTasks int, groups map[string]uint) map[string]interface{} {
	return map[string]interface{}{
		"running_tasks": runningTasks,
		"groups":        groups,
	}
}

// FanOut publishes to every configured Publisher, e.g. the websocket hub
// and the optional Redis mirror together. A failure on one publisher
// does not stop the others; the first error is returned to the caller.
type FanOut []Publisher

// Publish sends event to every member, returning the first error (after
// still attempting every member).
func (f FanOut) Publish(ctx context.Context, event *Event) error {
	var firstErr error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe is not meaningful for a fan-out sink; callers subscribe to
// the individual publisher they care about instead.
func (f FanOut) Subscribe(ctx context.Context, eventTypes ...EventType) (<-chan *Event, error) {
	ch := make(chan *Event)
	close(ch)
	return ch, nil
}

// Close closes every member.
func (f FanOut) Close() error {
	var firstErr error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
