package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskd-project/taskd/internal/events"
	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

// controlTimeout bounds how long an HTTP request waits for the handler
// tick loop to drain and acknowledge a control message.
const controlTimeout = 2 * time.Second

// TaskHandler serves the task CRUD and control endpoints described in
// spec.md §4.5, translating HTTP requests into state reads and
// messages.Message control messages for the task handler to process.
type TaskHandler struct {
	state     *state.State
	queue     messages.Queue
	publisher events.Publisher
}

// NewTaskHandler creates a task handler wired to the shared state and
// the handler's control message queue.
func NewTaskHandler(s *state.State, queue messages.Queue) *TaskHandler {
	return &TaskHandler{state: s, queue: queue}
}

// SetPublisher wires an event sink notified when a task is submitted.
// Leaving it unset is valid: notification becomes a no-op.
func (h *TaskHandler) SetPublisher(p events.Publisher) {
	h.publisher = p
}

// CreateTaskRequest is the payload for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Command      string     `json:"command"`
	Path         string     `json:"path"`
	Group        string     `json:"group,omitempty"`
	Dependencies []int      `json:"dependencies,omitempty"`
	EnqueueAt    *time.Time `json:"enqueue_at,omitempty"`
	Stashed      bool       `json:"stashed,omitempty"`
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Command == "" {
		h.respondError(w, http.StatusBadRequest, "command is required")
		return
	}

	t := task.New(-1, req.Command, req.Path)
	t.Group = req.Group
	t.Dependencies = req.Dependencies

	if req.EnqueueAt != nil {
		t.EnqueueAt = req.EnqueueAt
		t.Status = task.StatusStashed
	} else if req.Stashed {
		t.Status = task.StatusStashed
	}

	id := h.state.Add(t)
	created, _ := h.state.Get(id)

	logger.WithTask(id).Info().Str("group", created.EffectiveGroup()).Msg("task created")
	if h.publisher != nil {
		event := events.NewEvent(events.EventTaskSubmitted, events.TaskEventData(created.ID, created.Command, created.EffectiveGroup(), nil))
		if err := h.publisher.Publish(r.Context(), event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish task submitted event")
		}
	}
	h.respondJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) taskIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "taskID")
	return strconv.Atoi(raw)
}

// Get handles GET /api/v1/tasks/{taskID}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.taskIDParam(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "task id must be an integer")
		return
	}

	t, ok := h.state.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "task not found")
		return
	}

	h.respondJSON(w, http.StatusOK, t)
}

// List handles GET /api/v1/tasks, optionally filtered by ?group=.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	all := h.state.All()

	if group == "" {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": all})
		return
	}

	filtered := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if t.EffectiveGroup() == group {
			filtered = append(filtered, t)
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": filtered})
}

// send dispatches msg to the handler and waits for its reply, bounding
// the wait so a stalled tick loop can't hang an HTTP request forever.
func (h *TaskHandler) send(r *http.Request, msg messages.Message) error {
	reply := make(chan error, 1)
	msg.Reply = reply

	select {
	case h.queue <- msg:
	case <-r.Context().Done():
		return r.Context().Err()
	}

	select {
	case err := <-reply:
		return err
	case <-time.After(controlTimeout):
		return fmt.Errorf("timed out waiting for handler")
	}
}

// Pause handles POST /api/v1/tasks/{taskID}/pause.
func (h *TaskHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, err := h.taskIDParam(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "task id must be an integer")
		return
	}
	if err := h.send(r, messages.Message{Kind: messages.KindPause, TaskIDs: []int{id}}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "pause requested"})
}

// Start handles POST /api/v1/tasks/{taskID}/start. ?force=true bypasses
// dependency and group-slot checks (spec.md §4.5).
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := h.taskIDParam(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "task id must be an integer")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := h.send(r, messages.Message{Kind: messages.KindStart, TaskIDs: []int{id}, Force: force}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "start requested"})
}

// Kill handles POST /api/v1/tasks/{taskID}/kill.
func (h *TaskHandler) Kill(w http.ResponseWriter, r *http.Request) {
	id, err := h.taskIDParam(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "task id must be an integer")
		return
	}
	if err := h.send(r, messages.Message{Kind: messages.KindKill, TaskIDs: []int{id}}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "kill requested"})
}

// SendRequest is the payload for POST /api/v1/tasks/{taskID}/send.
type SendRequest struct {
	Input string `json:"input"`
}

// Send handles POST /api/v1/tasks/{taskID}/send, writing to the
// running child's stdin.
func (h *TaskHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := h.taskIDParam(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "task id must be an integer")
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.send(r, messages.Message{Kind: messages.KindSend, SendTaskID: id, Input: req.Input}); err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "input sent"})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
