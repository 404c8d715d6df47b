package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

// wsClient serializes writes because the websocket package
// allows only one concurrent writer per connection.
type wsClient struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (self *wsClient) WriteJSON(obj any) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.conn.WriteJSON(obj)
}

func (self *wsClient) Close() error {
	return self.conn.Close()
}

// Hub tracks the open websocket connections per user and
// pushes task updates to them.
type Hub struct {
	ScanService service.ScanService

	logger                 zerolog.Logger
	wsConnectionRepository repository.WsConnectionRepository

	mutex       sync.RWMutex
	connections map[int64]map[string]*wsClient
}

func NewHub(db config.DbIface, logger *zerolog.Logger) *Hub {
	return &Hub{
		logger:                 logger.With().Str("component", "Hub").Logger(),
		wsConnectionRepository: persistence.NewWsConnectionRepository(db),
		connections:            map[int64]map[string]*wsClient{},
	}
}

func (self *Hub) register(user *domain.User, conn *websocket.Conn) (string, *wsClient) {
	connectionId := uuid.NewString()
	client := &wsClient{conn: conn}

	self.mutex.Lock()
	if _, ok := self.connections[user.Id]; !ok {
		self.connections[user.Id] = map[string]*wsClient{}
	}
	self.connections[user.Id][connectionId] = client
	self.mutex.Unlock()

	if err := self.wsConnectionRepository.Save(&domain.WsConnection{
		ConnectionId: connectionId,
		UserId:       user.Id,
		IsActive:     true,
		ConnectedAt:  time.Now().UTC(),
	}); err != nil {
		self.logger.Err(err).Str("connection", connectionId).Msg("Failed to save connection")
	}

	self.logger.Debug().Str("connection", connectionId).Int64("user", user.Id).Msg("Connected")
	wsConnectionsGauge.Inc()
	return connectionId, client
}

// unregister is idempotent because a dead connection is cleaned up
// both by the reader goroutine and by a failed push.
func (self *Hub) unregister(userId int64, connectionId string) {
	present := false
	self.mutex.Lock()
	if conns, ok := self.connections[userId]; ok {
		if _, ok := conns[connectionId]; ok {
			present = true
			delete(conns, connectionId)
			if len(conns) == 0 {
				delete(self.connections, userId)
			}
		}
	}
	self.mutex.Unlock()

	if !present {
		return
	}

	if err := self.wsConnectionRepository.MarkInactive(connectionId, time.Now().UTC()); err != nil {
		self.logger.Err(err).Str("connection", connectionId).Msg("Failed to mark connection inactive")
	}

	self.logger.Debug().Str("connection", connectionId).Int64("user", userId).Msg("Disconnected")
	wsConnectionsGauge.Dec()
}

// Stats counts the live connections per user.
func (self *Hub) Stats() (total int, byUser map[int64]int) {
	self.mutex.RLock()
	defer self.mutex.RUnlock()

	byUser = map[int64]int{}
	for userId, clients := range self.connections {
		byUser[userId] = len(clients)
		total += len(clients)
	}
	return
}

// NotifyTaskUpdate pushes the task state to every connection
// of the user that triggered it. Connections that fail to take
// the message are dropped.
func (self *Hub) NotifyTaskUpdate(task *domain.ScanTask) {
	message := map[string]any{
		"type": "task_update",
		"task": task,
	}

	self.mutex.RLock()
	clients := make(map[string]*wsClient, len(self.connections[task.TriggeredBy]))
	for connectionId, client := range self.connections[task.TriggeredBy] {
		clients[connectionId] = client
	}
	self.mutex.RUnlock()

	for connectionId, client := range clients {
		if err := client.WriteJSON(message); err != nil {
			self.logger.Debug().Err(err).Str("connection", connectionId).Msg("Dropping dead connection")
			client.Close()
			self.unregister(task.TriggeredBy, connectionId)
		}
	}
}
