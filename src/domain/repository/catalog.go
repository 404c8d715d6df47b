package repository

import (
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

type CatalogRepository interface {
	WithQuerier(config.DbIface) CatalogRepository

	GetTables() ([]string, error)
	GetColumns(table string) ([]string, error)
	GetRows(table string, page *Page) ([]domain.TableRow, error)
}
