package repository

import (
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

type UserRepository interface {
	WithQuerier(config.DbIface) UserRepository

	GetByUsername(string) (*domain.User, error)
	GetByEmail(string) (*domain.User, error)
	Save(*domain.User) error
}
