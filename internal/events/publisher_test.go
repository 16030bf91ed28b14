package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_Constants(t *testing.T) {
	assert.Equal(t, EventType("task.submitted"), EventTaskSubmitted)
	assert.Equal(t, EventType("task.started"), EventTaskStarted)
	assert.Equal(t, EventType("task.paused"), EventTaskPaused)
	assert.Equal(t, EventType("task.resumed"), EventTaskResumed)
	assert.Equal(t, EventType("task.finished"), EventTaskFinished)
	assert.Equal(t, EventType("task.failed"), EventTaskFailed)
	assert.Equal(t, EventType("task.dependency_failed"), EventTaskDependencyFailed)
	assert.Equal(t, EventType("daemon.paused"), EventDaemonPaused)
	assert.Equal(t, EventType("daemon.resumed"), EventDaemonResumed)
	assert.Equal(t, EventType("daemon.heartbeat"), EventDaemonHeartbeat)
}

func TestNewEvent(t *testing.T) {
	data := map[string]interface{}{
		"task_id": 123,
		"command": "echo hi",
	}

	event := NewEvent(EventTaskSubmitted, data)

	assert.Equal(t, EventTaskSubmitted, event.Type)
	assert.Equal(t, data, event.Data)
	assert.False(t, event.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestEvent_ToJSON(t *testing.T) {
	event := &Event{
		Type:      EventTaskFinished,
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Data: map[string]interface{}{
			"task_id": 456,
			"result":  "success",
		},
	}

	data, err := event.ToJSON()
	require.NoError(t, err)

	var parsed map[string]interface{}
	err = json.Unmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, "task.finished", parsed["type"])
	assert.NotEmpty(t, parsed["timestamp"])
	assert.NotNil(t, parsed["data"])
}

func TestFromJSON(t *testing.T) {
	jsonData := `{
		"type": "task.failed",
		"timestamp": "2024-01-15T10:30:00Z",
		"data": {"task_id": 789, "result": "failed(1)"}
	}`

	event, err := FromJSON([]byte(jsonData))
	require.NoError(t, err)

	assert.Equal(t, EventTaskFailed, event.Type)
	assert.EqualValues(t, 789, event.Data["task_id"])
	assert.Equal(t, "failed(1)", event.Data["result"])
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("invalid json"))
	assert.Error(t, err)
}

func TestEvent_RoundTrip(t *testing.T) {
	original := NewEvent(EventTaskStarted, map[string]interface{}{
		"task_id": 1,
		"group":   "build",
	})

	data, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, original.Type, restored.Type)
	assert.EqualValues(t, original.Data["task_id"], restored.Data["task_id"])
	assert.Equal(t, original.Data["group"], restored.Data["group"])
}

func TestTaskEventData(t *testing.T) {
	data := TaskEventData(7, "make build", "build", map[string]interface{}{
		"exit_code": 1,
	})

	assert.Equal(t, 7, data["task_id"])
	assert.Equal(t, "make build", data["command"])
	assert.Equal(t, "build", data["group"])
	assert.Equal(t, 1, data["exit_code"])
}

func TestTaskEventData_NoExtra(t *testing.T) {
	data := TaskEventData(8, "true", "default", nil)

	assert.Equal(t, 8, data["task_id"])
	assert.Equal(t, "true", data["command"])
	assert.Equal(t, "default", data["group"])
	assert.Len(t, data, 3)
}

func TestHeartbeatData(t *testing.T) {
	groups := map[string]uint{"build": 2, "default": 1}
	data := HeartbeatData(3, groups)

	assert.Equal(t, 3, data["running_tasks"])
	assert.Equal(t, groups, data["groups"])
}
