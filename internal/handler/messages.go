package handler

import (
	"fmt"
	"os"
	"time"

	"github.com/taskd-project/taskd/internal/events"
	"github.com/taskd-project/taskd/internal/logfile"
	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/procsignal"
	"github.com/taskd-project/taskd/internal/task"
)

// drainOneMessage processes at most one pending control message per
// tick, keeping every state mutation on the handler's single goroutine.
func (h *Handler) drainOneMessage() {
	select {
	case msg := <-h.queue:
		err := h.handleMessage(msg)
		if err != nil {
			logger.Warn().Err(err).Int("kind", int(msg.Kind)).Msg("control message failed")
		}
		messages.Reply(msg, err)
	default:
	}
}

func (h *Handler) handleMessage(msg messages.Message) error {
	switch msg.Kind {
	case messages.KindPause:
		return h.handlePause(msg)
	case messages.KindStart:
		return h.handleStart(msg)
	case messages.KindKill:
		return h.handleKill(msg)
	case messages.KindSend:
		return h.handleSend(msg)
	case messages.KindReset:
		return h.handleReset(msg)
	default:
		return fmt.Errorf("unknown message kind %d", msg.Kind)
	}
}

// targetRunningIDs resolves which task ids a Pause/Start/Kill message
// applies to: explicit ids win, then a named group, then every alive
// task as the daemon-wide fallback.
func (h *Handler) targetRunningIDs(msg messages.Message) []int {
	if len(msg.TaskIDs) > 0 {
		return msg.TaskIDs
	}

	var ids []int
	h.state.Lock()
	for _, id := range h.state.IDsAscendingLocked() {
		t, ok := h.state.TaskRef(id)
		if !ok || !t.Status.Alive() {
			continue
		}
		if msg.Group != "" && t.EffectiveGroup() != msg.Group {
			continue
		}
		ids = append(ids, id)
	}
	h.state.Unlock()
	return ids
}

func (h *Handler) handlePause(msg messages.Message) error {
	if len(msg.TaskIDs) == 0 && msg.Group == "" {
		h.state.SetRunning(false)
		h.emitDaemon(events.EventDaemonPaused, nil)
		return nil
	}

	for _, id := range h.targetRunningIDs(msg) {
		t, ok := h.state.Get(id)
		if !ok || t.Status != task.StatusRunning {
			continue
		}
		handle, ok := h.children.Get(id)
		if !ok {
			continue
		}
		if err := procsignal.Pause(handle.Cmd.Process); err != nil {
			logger.WithTask(id).Warn().Err(err).Msg("failed to pause process")
			continue
		}
		h.state.Mutate(id, func(tk *task.Task) { tk.Status = task.StatusPaused })
		if paused, ok := h.state.Get(id); ok {
			h.emit(events.EventTaskPaused, paused, nil)
		}
	}
	h.state.Save()
	return nil
}

func (h *Handler) handleStart(msg messages.Message) error {
	if msg.Force {
		return h.handleForceStart(msg)
	}

	if len(msg.TaskIDs) == 0 && msg.Group == "" {
		h.state.SetRunning(true)
		h.emitDaemon(events.EventDaemonResumed, nil)
		return nil
	}

	for _, id := range h.targetRunningIDs(msg) {
		t, ok := h.state.Get(id)
		if !ok || t.Status != task.StatusPaused {
			continue
		}
		handle, ok := h.children.Get(id)
		if !ok {
			continue
		}
		if err := procsignal.Resume(handle.Cmd.Process); err != nil {
			logger.WithTask(id).Warn().Err(err).Msg("failed to resume process")
			continue
		}
		h.state.Mutate(id, func(tk *task.Task) { tk.Status = task.StatusRunning })
		if resumed, ok := h.state.Get(id); ok {
			h.emit(events.EventTaskResumed, resumed, nil)
		}
	}
	h.state.Save()
	return nil
}

// handleForceStart launches the named Queued/Stashed tasks immediately,
// bypassing the group-slot and dependency checks scheduler.Next enforces
// (spec.md §4.5: force-start is an explicit override).
func (h *Handler) handleForceStart(msg messages.Message) error {
	for _, id := range msg.TaskIDs {
		t, ok := h.state.Get(id)
		if !ok {
			continue
		}
		if t.Status != task.StatusQueued && t.Status != task.StatusStashed {
			continue
		}
		h.launch(id, true)
	}
	return nil
}

func (h *Handler) handleKill(msg messages.Message) error {
	now := time.Now()
	for _, id := range h.targetRunningIDs(msg) {
		handle, ok := h.children.Get(id)
		if !ok {
			continue
		}
		if err := procsignal.Kill(handle.Cmd.Process); err != nil {
			logger.WithTask(id).Warn().Err(err).Msg("failed to kill process")
			continue
		}
		// Set Done(Killed) eagerly. The process's Wait() goroutine will
		// report in on its own schedule and the reaper will see this
		// task already Done; it only removes the now-stale child handle
		// and leaves this result alone (spec.md §4.5/§9, invariant 3).
		h.state.Mutate(id, func(tk *task.Task) {
			tk.Status = task.StatusDone
			tk.Result = &task.Result{Kind: task.ResultKilled}
			tk.End = &now
		})
		if killed, ok := h.state.Get(id); ok {
			h.emit(events.EventTaskFailed, killed, map[string]interface{}{"result": "killed"})
		}
	}
	h.state.Save()
	return nil
}

func (h *Handler) handleSend(msg messages.Message) error {
	handle, ok := h.children.Get(msg.SendTaskID)
	if !ok {
		return fmt.Errorf("task %d has no running process", msg.SendTaskID)
	}
	_, err := handle.Stdin.Write([]byte(msg.Input))
	return err
}

// handleReset defers to maybeCompleteReset once every child has
// drained (spec.md §4.6): a reset while tasks are alive cannot safely
// wipe the table out from under a running child.
func (h *Handler) handleReset(msg messages.Message) error {
	if h.children.Len() > 0 {
		h.resetPending = true
		return nil
	}
	h.state.ResetAll()
	if err := os.RemoveAll(logfile.Dir(h.pueueDirectory())); err != nil {
		return err
	}
	return nil
}
