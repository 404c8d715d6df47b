package repository

import (
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

type ScanTaskRepository interface {
	WithQuerier(config.DbIface) ScanTaskRepository

	GetByTaskId(string) (*domain.ScanTask, error)
	GetByUser(userId int64, status *domain.ScanTaskStatus, page *Page) ([]*domain.ScanTask, error)
	GetByUserCursor(userId int64, status *domain.ScanTaskStatus, page *CursorPage) ([]*domain.ScanTask, error)
	GetLatestByUser(userId int64, limit int) ([]*domain.ScanTask, error)
	Save(*domain.ScanTask) error
	Update(*domain.ScanTask) error
}
