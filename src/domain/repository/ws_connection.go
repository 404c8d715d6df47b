package repository

import (
	"time"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

type WsConnectionRepository interface {
	WithQuerier(config.DbIface) WsConnectionRepository

	Save(*domain.WsConnection) error
	MarkInactive(connectionId string, at time.Time) error
}
