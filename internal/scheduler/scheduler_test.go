package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

func newTestState(groups map[string]uint, defaultParallel uint) *state.State {
	return state.New(state.Settings{
		Groups:               groups,
		DefaultParallelTasks: defaultParallel,
	}, nil)
}

func TestNext_PicksFirstQueuedByAscendingID(t *testing.T) {
	s := newTestState(nil, 5)
	s.Add(task.New(-1, "true", "/tmp"))
	s.Add(task.New(-1, "true", "/tmp"))

	s.Lock()
	id, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	require.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestNext_RespectsGroupSlotBound(t *testing.T) {
	s := newTestState(map[string]uint{"build": 1}, 5)
	first := task.New(-1, "sleep 1", "/tmp")
	first.Group = "build"
	id1 := s.Add(first)
	s.Mutate(id1, func(tk *task.Task) { tk.Status = task.StatusRunning })

	second := task.New(-1, "true", "/tmp")
	second.Group = "build"
	s.Add(second)

	s.Lock()
	_, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	assert.False(t, ok, "group build has no free slot")
}

func TestNext_PausedTaskHoldsSlot(t *testing.T) {
	s := newTestState(map[string]uint{"build": 1}, 5)
	first := task.New(-1, "sleep 1", "/tmp")
	first.Group = "build"
	id1 := s.Add(first)
	s.Mutate(id1, func(tk *task.Task) { tk.Status = task.StatusPaused })

	second := task.New(-1, "true", "/tmp")
	second.Group = "build"
	s.Add(second)

	s.Lock()
	_, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	assert.False(t, ok)
}

func TestNext_UnknownGroupIsSkipped(t *testing.T) {
	s := newTestState(nil, 5)
	tk := task.New(-1, "true", "/tmp")
	tk.Group = "ghost"
	s.Add(tk)

	s.Lock()
	_, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	assert.False(t, ok)
}

func TestNext_WaitsOnUnsatisfiedDependency(t *testing.T) {
	s := newTestState(nil, 5)
	depID := s.Add(task.New(-1, "true", "/tmp"))
	dependent := task.New(-1, "true", "/tmp")
	dependent.Dependencies = []int{depID}
	s.Add(dependent)

	s.Lock()
	id, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	require.True(t, ok)
	assert.Equal(t, depID, id, "only the dependency itself is launchable")
}

func TestNext_LaunchesAfterDependencySucceeds(t *testing.T) {
	s := newTestState(nil, 5)
	depID := s.Add(task.New(-1, "true", "/tmp"))
	s.Mutate(depID, func(tk *task.Task) {
		tk.Status = task.StatusDone
		tk.Result = &task.Result{Kind: task.ResultSuccess}
	})

	dependent := task.New(-1, "true", "/tmp")
	dependent.Dependencies = []int{depID}
	depTaskID := s.Add(dependent)

	s.Lock()
	id, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	require.True(t, ok)
	assert.Equal(t, depTaskID, id)
}

func TestNext_MissingDependencyIsNotSatisfied(t *testing.T) {
	s := newTestState(nil, 5)
	dependent := task.New(-1, "true", "/tmp")
	dependent.Dependencies = []int{999}
	s.Add(dependent)

	s.Lock()
	_, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	assert.False(t, ok)
}

func TestNext_NoneQueued(t *testing.T) {
	s := newTestState(nil, 5)
	id := s.Add(task.New(-1, "true", "/tmp"))
	s.Mutate(id, func(tk *task.Task) { tk.Status = task.StatusStashed })

	s.Lock()
	_, ok := Next(s, NewUnknownGroupTracker())
	s.Unlock()

	assert.False(t, ok)
}
