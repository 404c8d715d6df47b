package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestShouldRejectWebsocketWithoutToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)

	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestShouldSpeakWebsocketProtocol(t *testing.T) {
	// given a served hub backed by a stub database
	web, handler := buildWeb()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	logger := zerolog.Nop()
	web.Hub = NewHub(db, &logger)
	web.Hub.ScanService = fakeScanService{}
	mock.ExpectExec("INSERT INTO websocket_connections").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE websocket_connections").WillReturnResult(sqlmock.NewResult(0, 1))
	srv := httptest.NewServer(handler)
	defer srv.Close()
	gaugeBefore := testutil.ToFloat64(wsConnectionsGauge)

	token, _, err := web.TokenService.Issue("alice")
	if err != nil {
		t.Fatalf("an error %q was not expected when issuing a token", err)
	}

	// when
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("an error %q was not expected when dialing the websocket", err)
	}
	defer conn.Close()

	// then the server greets first
	message := map[string]any{}
	assert.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "connection_established", message["type"])
	assert.Equal(t, "alice", message["user"])
	assert.NotEmpty(t, message["connection_id"])

	// and answers pings
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	message = map[string]any{}
	assert.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "pong", message["type"])
	assert.NotEmpty(t, message["timestamp"])

	// and serves the latest tasks
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "get_tasks"}))
	message = map[string]any{}
	assert.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "tasks", message["type"])

	// and acknowledges cancellation requests
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "cancel_task", "task_id": "task-1"}))
	message = map[string]any{}
	assert.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "cancel_ack", message["type"])
	assert.Equal(t, "task-1", message["task_id"])

	// and names unknown message types
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "resume"}))
	message = map[string]any{}
	assert.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "error", message["type"])
	assert.Equal(t, "Unknown message type: resume", message["message"])

	// closing the socket removes the connection from the hub
	conn.Close()
	for i := 0; i < 100; i++ {
		if testutil.ToFloat64(wsConnectionsGauge) == gaugeBefore {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	total, _ := web.Hub.Stats()
	assert.Equal(t, 0, total)
	assert.Equal(t, gaugeBefore, testutil.ToFloat64(wsConnectionsGauge))
}
