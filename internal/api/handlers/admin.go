package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/state"
)

// AdminHandler serves daemon-wide administration endpoints: global
// pause/resume, group configuration, and health.
type AdminHandler struct {
	state *state.State
	queue messages.Queue
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(s *state.State, queue messages.Queue) *AdminHandler {
	return &AdminHandler{state: s, queue: queue}
}

func (h *AdminHandler) send(r *http.Request, msg messages.Message) error {
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
		return http.ErrHandlerTimeout
	}
}

// Pause handles POST /admin/pause, stopping the daemon from scheduling
// new tasks. An optional ?group= pauses every running task in a group.
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if err := h.send(r, messages.Message{Kind: messages.KindPause, Group: group}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "pause requested"})
}

// Resume handles POST /admin/resume.
func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if err := h.send(r, messages.Message{Kind: messages.KindStart, Group: group}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "resume requested"})
}

// Reset handles POST /admin/reset, wiping the task table once every
// running child has exited (spec.md §4.6).
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.send(r, messages.Message{Kind: messages.KindReset}); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "reset requested"})
}

// GroupsRequest is the payload for PUT /admin/groups.
type GroupsRequest struct {
	Groups               map[string]uint `json:"groups"`
	DefaultParallelTasks uint            `json:"default_parallel_tasks,omitempty"`
}

// GetGroups handles GET /admin/groups.
func (h *AdminHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	settings := h.state.Settings()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"groups":                 settings.Groups,
		"default_parallel_tasks": settings.DefaultParallelTasks,
	})
}

// UpdateGroups handles PUT /admin/groups: reconfigures group
// parallelism without a restart.
func (h *AdminHandler) UpdateGroups(w http.ResponseWriter, r *http.Request) {
	var req GroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := h.state.Settings()
	settings.Groups = req.Groups
	if req.DefaultParallelTasks > 0 {
		settings.DefaultParallelTasks = req.DefaultParallelTasks
	}
	h.state.UpdateSettings(settings)
	h.state.Save()

	logger.Info().Interface("groups", req.Groups).Msg("group configuration updated")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"groups": settings.Groups})
}

// HealthCheck handles GET /admin/health.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"running": h.state.Running(),
		"tasks":   len(h.state.All()),
	})
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *AdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
