package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskd-project/taskd/internal/events"
)

func TestHandler_ServeWS_BroadcastsTaskEvent(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Run(ctx)
	defer hub.Stop()

	handler := NewHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	event := events.NewEvent(events.EventTaskStarted, events.TaskEventData(1, "true", "default", nil))
	require.NoError(t, hub.Publish(ctx, event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var received events.Event
	require.NoError(t, json.Unmarshal(data, &received))
	assert.Equal(t, events.EventTaskStarted, received.Type)
}
