package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/state"
)

func newTestAdminHandler() (*AdminHandler, *state.State, messages.Queue) {
	s := state.New(state.Settings{DefaultParallelTasks: 1}, nil)
	queue := messages.NewQueue(4)
	return NewAdminHandler(s, queue), s, queue
}

func TestAdminHandler_respondJSON(t *testing.T) {
	h := &AdminHandler{}

	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	h.respondJSON(w, http.StatusOK, data)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestAdminHandler_respondError(t *testing.T) {
	h := &AdminHandler{}

	w := httptest.NewRecorder()
	h.respondError(w, http.StatusNotFound, "task not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Not Found", response["error"])
	assert.Equal(t, "task not found", response["message"])
}

func TestAdminHandler_Pause_SendsPauseMessage(t *testing.T) {
	h, _, queue := newTestAdminHandler()

	var received messages.Message
	go func() {
		received = <-queue
		messages.Reply(received, nil)
	}()

	req := httptest.NewRequest(http.MethodPost, "/admin/pause", nil)
	w := httptest.NewRecorder()

	h.Pause(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, messages.KindPause, received.Kind)
}

func TestAdminHandler_Pause_WithGroup(t *testing.T) {
	h, _, queue := newTestAdminHandler()

	var received messages.Message
	go func() {
		received = <-queue
		messages.Reply(received, nil)
	}()

	req := httptest.NewRequest(http.MethodPost, "/admin/pause?group=build", nil)
	w := httptest.NewRecorder()

	h.Pause(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "build", received.Group)
}

func TestAdminHandler_Resume(t *testing.T) {
	h, _, queue := newTestAdminHandler()

	go func() {
		msg := <-queue
		assert.Equal(t, messages.KindStart, msg.Kind)
		messages.Reply(msg, nil)
	}()

	req := httptest.NewRequest(http.MethodPost, "/admin/resume", nil)
	w := httptest.NewRecorder()

	h.Resume(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_Reset(t *testing.T) {
	h, _, queue := newTestAdminHandler()

	go func() {
		msg := <-queue
		assert.Equal(t, messages.KindReset, msg.Kind)
		messages.Reply(msg, nil)
	}()

	req := httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	w := httptest.NewRecorder()

	h.Reset(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_GetGroups(t *testing.T) {
	h, s, _ := newTestAdminHandler()
	settings := s.Settings()
	settings.Groups = map[string]uint{"build": 2}
	s.UpdateSettings(settings)

	req := httptest.NewRequest(http.MethodGet, "/admin/groups", nil)
	w := httptest.NewRecorder()

	h.GetGroups(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	groups := body["groups"].(map[string]interface{})
	assert.Equal(t, float64(2), groups["build"])
}

func TestAdminHandler_UpdateGroups(t *testing.T) {
	h, s, _ := newTestAdminHandler()

	payload := `{"groups":{"build":3},"default_parallel_tasks":2}`
	req := httptest.NewRequest(http.MethodPut, "/admin/groups", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()

	h.UpdateGroups(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	settings := s.Settings()
	assert.Equal(t, uint(3), settings.Groups["build"])
	assert.Equal(t, uint(2), settings.DefaultParallelTasks)
}

func TestAdminHandler_UpdateGroups_InvalidBody(t *testing.T) {
	h, _, _ := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodPut, "/admin/groups", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()

	h.UpdateGroups(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_HealthCheck(t *testing.T) {
	h, _, _ := newTestAdminHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	w := httptest.NewRecorder()

	h.HealthCheck(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["running"])
}
