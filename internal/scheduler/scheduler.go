// Package scheduler implements spec.md §4.2: picking at most one
// launchable task per tick, subject to group parallelism and dependency
// constraints.
package scheduler

import (
	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

// unknownGroupLogged de-duplicates the "unknown group" warning so a
// persistently misconfigured task doesn't spam the log every 100ms.
type unknownGroupLogged map[string]bool

// Next returns the id of the next task the scheduler would launch, or
// false if none is currently launchable. It must be called with s
// already locked (s.Lock()), since it reads the live task map to avoid
// cloning the whole table every tick.
func Next(s *state.State, warned unknownGroupLogged) (int, bool) {
	settings := s.SettingsLocked()
	running := runningPerGroup(s)

	ids := s.IDsAscendingLocked()
	for _, id := range ids {
		t, ok := s.TaskRef(id)
		if !ok || t.Status != task.StatusQueued {
			continue
		}

		group := t.EffectiveGroup()
		max, known := settings.MaxParallel(group)
		if !known {
			if warned != nil && !warned[group] {
				logger.WithGroup(group).Error().Msg("unknown group")
				warned[group] = true
			}
			continue
		}
		if running[group] >= max {
			continue
		}

		if !dependenciesSatisfied(s, t) {
			continue
		}

		return id, true
	}
	return 0, false
}

// runningPerGroup must be called with s locked; it scans the live table
// directly (spec.md §4.2 step 1).
func runningPerGroup(s *state.State) map[string]uint {
	counts := make(map[string]uint)
	for _, t := range s.TasksLocked() {
		if t.Status.Alive() {
			counts[t.EffectiveGroup()]++
		}
	}
	return counts
}

// dependenciesSatisfied reports whether every dependency of t has
// reached Done(Success). A missing dependency id is "not yet satisfied"
// per spec.md §4.2, not an error.
func dependenciesSatisfied(s *state.State, t *task.Task) bool {
	for _, depID := range t.Dependencies {
		dep, ok := s.TaskRef(depID)
		if !ok {
			return false
		}
		if !dep.Succeeded() {
			return false
		}
	}
	return true
}

// NewUnknownGroupTracker creates the de-dup set Next expects.
func NewUnknownGroupTracker() unknownGroupLogged {
	return make(unknownGroupLogged)
}
