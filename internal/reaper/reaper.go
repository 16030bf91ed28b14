// Package reaper implements spec.md §4.4: draining children that have
// exited since the last tick without blocking on any that haven't.
package reaper

import (
	"time"

	"github.com/taskd-project/taskd/internal/children"
	"github.com/taskd-project/taskd/internal/logfile"
	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

// Finished is one task whose child exited this pass, for the caller to
// feed into the callback engine.
type Finished struct {
	ID     int
	Result task.Result
}

// Reap does one non-blocking pass over every live child, collecting the
// ones whose Done channel already has a result. It mutates the
// corresponding task to Done with the appropriate Result, removes the
// child handle, and returns the list of ids that finished this pass.
//
// resetInProgress, when true, deletes the task's log files immediately
// (spec.md §4.6: a deferred reset discards output as each child drains).
func Reap(table *children.Table, s *state.State, pueueDirectory string, resetInProgress bool) []Finished {
	var finished []Finished

	for id, handle := range table.Snapshot() {
		select {
		case result := <-handle.Done:
			table.Remove(id)
			now := time.Now()
			taskResult := resultFromWait(result)

			alreadyDone := false
			s.Mutate(id, func(t *task.Task) {
				if t.Status == task.StatusDone {
					// a control message (e.g. kill) already settled
					// this task's terminal status; the child's exit
					// report arrived late and must not overwrite it
					// (spec.md §4.5/§9, invariant 3).
					alreadyDone = true
					return
				}
				t.Status = task.StatusDone
				t.Result = &taskResult
				t.End = &now
			})
			if alreadyDone {
				continue
			}
			s.Save()

			if resetInProgress {
				logfile.Clean(pueueDirectory, id)
			}

			finished = append(finished, Finished{ID: id, Result: taskResult})
		default:
			// still running, leave it for the next tick
		}
	}

	return finished
}

func resultFromWait(w children.WaitResult) task.Result {
	if w.Err != nil {
		return task.Result{Kind: task.ResultKilled, Message: w.Err.Error()}
	}
	if w.Signaled {
		return task.Result{Kind: task.ResultKilled}
	}
	if w.ExitCode == 0 {
		return task.Result{Kind: task.ResultSuccess}
	}
	return task.Result{Kind: task.ResultFailed, ExitCode: w.ExitCode}
}
