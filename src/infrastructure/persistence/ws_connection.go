package persistence

import (
	"context"
	"time"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type wsConnectionRepository struct {
	DB config.DbIface
}

func NewWsConnectionRepository(db config.DbIface) repository.WsConnectionRepository {
	return &wsConnectionRepository{db}
}

func (a wsConnectionRepository) WithQuerier(querier config.DbIface) repository.WsConnectionRepository {
	return &wsConnectionRepository{querier}
}

func (a wsConnectionRepository) Save(connection *domain.WsConnection) error {
	connection.ConnectedAt = time.Now().UTC()
	_, err := a.DB.ExecContext(
		context.Background(),
		`INSERT INTO websocket_connections (connection_id, user_id, is_active, connected_at)
		VALUES (:1, :2, :3, :4)`,
		connection.ConnectionId, connection.UserId, connection.IsActive, connection.ConnectedAt,
	)
	return err
}

func (a wsConnectionRepository) MarkInactive(connectionId string, at time.Time) (err error) {
	_, err = a.DB.ExecContext(
		context.Background(),
		`UPDATE websocket_connections SET is_active = 0, disconnected_at = :1 WHERE connection_id = :2`,
		at, connectionId,
	)
	return
}
