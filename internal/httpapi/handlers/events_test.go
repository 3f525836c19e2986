package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/fsm"
)

func newTestEventsServer(hub *EventsHub) *httptest.Server {
	router := chi.NewRouter()
	hub.RegisterRoutes(router)
	return httptest.NewServer(router)
}

func TestEventsHub_BroadcastsOnInfo(t *testing.T) {
	hub := NewEventsHub(nil)
	go hub.Run()
	defer hub.Close()

	srv := newTestEventsServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/pipeline/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	hub.OnInfo(fsm.InfoEOS, map[string]any{"reason": "done"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg eventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "info", msg.Type)
	require.Equal(t, "eos", msg.Kind)
}

func TestEventsHub_BroadcastsOnError(t *testing.T) {
	hub := NewEventsHub(nil)
	go hub.Run()
	defer hub.Close()

	srv := newTestEventsServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/pipeline/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	hub.OnError(errors.CodePluginNotFound)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg eventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "error", msg.Type)
	require.Equal(t, errors.CodePluginNotFound.String(), msg.Kind)
}
