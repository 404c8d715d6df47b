package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var websocketUpgrader = websocket.Upgrader{}

type wsMessage struct {
	Type   string `json:"type"`
	TaskId string `json:"task_id,omitempty"`
}

// ApiWsGet speaks a small message protocol with the browser.
// Browsers cannot set headers on websocket requests so the
// token is taken from a query parameter instead.
func (self *Web) ApiWsGet(w http.ResponseWriter, req *http.Request) {
	user, err := self.userFromToken(req.URL.Query().Get("token"))
	if err != nil {
		self.Unauthorized(w, err)
		return
	}

	conn, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		self.ClientError(w, err)
		return
	}

	connectionId, client := self.Hub.register(user, conn)

	if err := client.WriteJSON(map[string]any{
		"type":          "connection_established",
		"connection_id": connectionId,
		"user":          user.Username,
		"message":       "WebSocket connection established successfully",
	}); err != nil {
		client.Close()
		self.Hub.unregister(user.Id, connectionId)
		return
	}

	go func() {
		defer func() {
			client.Close()
			self.Hub.unregister(user.Id, connectionId)
		}()

		for {
			message := wsMessage{}
			if err := conn.ReadJSON(&message); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					self.Logger.Debug().Err(err).Str("connection", connectionId).Msg("While reading websocket message")
				}
				return
			}

			if err := self.handleWsMessage(client, user.Id, message); err != nil {
				self.Logger.Debug().Err(err).Str("connection", connectionId).Msg("While handling websocket message")
				return
			}
		}
	}()
}

// ApiWsConnectionsGet reports how many clients are connected right now.
func (self *Web) ApiWsConnectionsGet(w http.ResponseWriter, req *http.Request) {
	total, byUser := self.Hub.Stats()
	self.json(w, map[string]any{
		"total_connections":   total,
		"users_connected":     len(byUser),
		"connections_by_user": byUser,
	}, http.StatusOK)
}

func (self *Web) handleWsMessage(client *wsClient, userId int64, message wsMessage) error {
	switch message.Type {
	case "ping":
		return client.WriteJSON(map[string]string{
			"type":      "pong",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	case "get_tasks":
		tasks, err := self.Hub.ScanService.GetLatest(userId, 10)
		if err != nil {
			return errors.WithMessage(err, "While getting latest tasks")
		}
		return client.WriteJSON(map[string]any{
			"type":  "tasks",
			"tasks": tasks,
		})
	case "cancel_task":
		// Build cancellation is not supported, just acknowledge.
		return client.WriteJSON(map[string]any{
			"type":    "cancel_ack",
			"task_id": message.TaskId,
		})
	default:
		return client.WriteJSON(map[string]any{
			"type":    "error",
			"message": "Unknown message type: " + message.Type,
		})
	}
}
