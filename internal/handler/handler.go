// Package handler implements the task handler tick loop, spec.md §4.1's
// single-threaded heart of the daemon. Every tick performs, in this
// fixed order: drain one control message, reap finished children, run
// callbacks for tasks that just finished, promote delayed/stashed
// tasks whose time has come, cascade failures onto tasks blocked on a
// failed dependency, and finally schedule and launch at most one task.
//
// Keeping everything single-threaded (one goroutine owns the state
// mutations every tick) is the Go translation of pueue's own
// single-threaded tokio task: rather than actor-style message passing
// over async tasks, this loop just runs synchronously on a ticker and
// takes the state mutex only for the duration of each step.
package handler

import (
	"context"
	"os"
	"time"

	"github.com/taskd-project/taskd/internal/callback"
	"github.com/taskd-project/taskd/internal/children"
	"github.com/taskd-project/taskd/internal/events"
	"github.com/taskd-project/taskd/internal/logfile"
	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/procsignal"
	"github.com/taskd-project/taskd/internal/reaper"
	"github.com/taskd-project/taskd/internal/scheduler"
	"github.com/taskd-project/taskd/internal/spawner"
	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

// TickInterval is the default cadence of the handler loop, matching
// pueue's own 100ms poll.
const TickInterval = 100 * time.Millisecond

// Handler owns the task table, the live children, and the control
// message queue, and drives the scheduling tick loop.
type Handler struct {
	state     *state.State
	children  *children.Table
	queue     messages.Queue
	warned    map[string]bool
	publisher events.Publisher

	tickInterval time.Duration

	resetPending bool
}

// New creates a Handler wired to the given state, children table and
// control message queue.
func New(s *state.State, table *children.Table, queue messages.Queue) *Handler {
	return &Handler{
		state:        s,
		children:     table,
		queue:        queue,
		warned:       make(map[string]bool),
		tickInterval: TickInterval,
	}
}

// SetPublisher wires an event sink the handler notifies on task lifecycle
// transitions. Leaving it unset (the zero value, nil) is valid: emit
// becomes a no-op and the tick loop behaves exactly as before.
func (h *Handler) SetPublisher(p events.Publisher) {
	h.publisher = p
}

// emitDaemon mirrors a daemon-wide transition (no single task attached)
// to the configured publisher, if any.
func (h *Handler) emitDaemon(eventType events.EventType, data map[string]interface{}) {
	if h.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, data)
	if err := h.publisher.Publish(context.Background(), event); err != nil {
		logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish daemon event")
	}
}

// emit mirrors a task lifecycle transition to the configured publisher,
// if any. Event delivery never blocks or fails the tick: spec.md's
// non-goal on distributed execution means this is observability only.
func (h *Handler) emit(eventType events.EventType, t *task.Task, extra map[string]interface{}) {
	if h.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, events.TaskEventData(t.ID, t.Command, t.EffectiveGroup(), extra))
	if err := h.publisher.Publish(context.Background(), event); err != nil {
		logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish task event")
	}
}

// Run drives the tick loop until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick runs the fixed phase order described in the package doc once.
func (h *Handler) tick() {
	h.drainOneMessage()
	finished := reaper.Reap(h.children, h.state, h.pueueDirectory(), h.resetPending)
	if h.state.Settings().PauseOnFailure {
		for _, f := range finished {
			if f.Result.Failed() {
				h.state.SetRunning(false)
				break
			}
		}
	}
	h.emitFinished(finished)
	h.runCallbacks(finished)
	h.maybeCompleteReset()
	h.promoteDelayed()
	h.cascadeDependencyFailures()
	h.scheduleAndLaunch()
}

func (h *Handler) pueueDirectory() string {
	return h.state.Settings().PueueDirectory
}

// runCallbacks fires the configured callback command, if any, once per
// task that finished this tick.
func (h *Handler) runCallbacks(finished []reaper.Finished) {
	tmpl := h.state.Settings().Callback
	if tmpl == "" {
		return
	}
	for _, f := range finished {
		t, ok := h.state.Get(f.ID)
		if !ok {
			continue
		}
		callback.Run(tmpl, t)
	}
}

// emitFinished mirrors each reaped task's outcome, run right after Reap
// so the event reflects the freshly persisted Result.
func (h *Handler) emitFinished(finished []reaper.Finished) {
	for _, f := range finished {
		t, ok := h.state.Get(f.ID)
		if !ok {
			continue
		}
		if f.Result.Failed() {
			h.emit(events.EventTaskFailed, t, map[string]interface{}{"result": f.Result.String()})
			continue
		}
		h.emit(events.EventTaskFinished, t, map[string]interface{}{"result": f.Result.String()})
	}
}

// maybeCompleteReset finishes a Reset message once every child has
// drained (spec.md §4.6: reset is deferred while any task is alive).
func (h *Handler) maybeCompleteReset() {
	if !h.resetPending || h.children.Len() > 0 {
		return
	}
	h.state.ResetAll()
	if err := os.RemoveAll(logfile.Dir(h.pueueDirectory())); err != nil {
		logger.Warn().Err(err).Msg("failed to clear log directory on reset")
	}
	h.resetPending = false
	logger.Info().Msg("reset completed")
}

// promoteDelayed moves Stashed tasks whose enqueue_at has arrived into
// Queued (spec.md §4.6).
func (h *Handler) promoteDelayed() {
	now := time.Now()
	promoted := false
	h.state.Lock()
	for _, id := range h.state.IDsAscendingLocked() {
		t, ok := h.state.TaskRef(id)
		if !ok || t.Status != task.StatusStashed || t.EnqueueAt == nil {
			continue
		}
		if now.Before(*t.EnqueueAt) {
			continue
		}
		t.Status = task.StatusQueued
		t.EnqueueAt = nil
		promoted = true
	}
	h.state.Unlock()
	if promoted {
		h.state.Save()
	}
}

// cascadeDependencyFailures marks a Queued task Done(DependencyFailed)
// as soon as any of its dependencies finished without success (spec.md
// §4.7). Ascending iteration means a dependency chain resolves fully
// within a handful of ticks even without recursing in this pass.
func (h *Handler) cascadeDependencyFailures() {
	now := time.Now()
	var cascaded []*task.Task
	h.state.Lock()
	for _, id := range h.state.IDsAscendingLocked() {
		t, ok := h.state.TaskRef(id)
		if !ok || t.Status != task.StatusQueued || len(t.Dependencies) == 0 {
			continue
		}
		for _, depID := range t.Dependencies {
			dep, ok := h.state.TaskRef(depID)
			if !ok || dep.Status != task.StatusDone {
				continue
			}
			if dep.Result != nil && dep.Result.Failed() {
				t.Status = task.StatusDone
				t.Result = &task.Result{Kind: task.ResultDependencyFailed}
				t.End = &now
				cascaded = append(cascaded, t.Clone())
				break
			}
		}
	}
	h.state.Unlock()
	if len(cascaded) > 0 {
		h.state.Save()
	}
	for _, t := range cascaded {
		h.emit(events.EventTaskDependencyFailed, t, nil)
	}
}

// scheduleAndLaunch picks at most one launchable task and spawns it.
func (h *Handler) scheduleAndLaunch() {
	if !h.state.Running() {
		return
	}

	h.state.Lock()
	id, ok := scheduler.Next(h.state, h.warned)
	h.state.Unlock()
	if !ok {
		return
	}

	h.launch(id, false)
}

// launch spawns the task's process and transitions it to Running, or
// to Done(FailedToSpawn) if the OS refused to start it. force bypasses
// no additional checks here; callers decide eligibility before calling.
func (h *Handler) launch(id int, force bool) {
	t, ok := h.state.Get(id)
	if !ok {
		return
	}

	if err := spawner.Spawn(h.children, h.pueueDirectory(), t); err != nil {
		now := time.Now()
		h.state.Mutate(id, func(tk *task.Task) {
			tk.Status = task.StatusDone
			tk.Result = &task.Result{Kind: task.ResultFailedToSpawn, Message: err.Error()}
			tk.End = &now
		})
		h.state.Save()
		logfile.Clean(h.pueueDirectory(), id)

		if h.state.Settings().PauseOnFailure {
			h.state.SetRunning(false)
		}
		logger.WithTask(id).Error().Err(err).Msg("failed to spawn task")
		if failed, ok := h.state.Get(id); ok {
			h.emit(events.EventTaskFailed, failed, map[string]interface{}{"result": "failed_to_spawn"})
		}
		return
	}

	now := time.Now()
	h.state.Mutate(id, func(tk *task.Task) {
		tk.Status = task.StatusRunning
		tk.Start = &now
	})
	h.state.Save()
	if started, ok := h.state.Get(id); ok {
		h.emit(events.EventTaskStarted, started, nil)
	}
}

// Close kills every remaining child process, mirroring pueue's Drop
// teardown: no orphaned children survive the daemon exiting.
func (h *Handler) Close() {
	for _, id := range h.children.IDs() {
		handle, ok := h.children.Get(id)
		if !ok {
			continue
		}
		if err := procsignal.Kill(handle.Cmd.Process); err != nil {
			logger.WithTask(id).Warn().Err(err).Msg("failed to kill child on shutdown")
		}
	}
}
