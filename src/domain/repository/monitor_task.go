package repository

import (
	"time"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

type MonitorTaskRepository interface {
	WithQuerier(config.DbIface) MonitorTaskRepository

	GetByTaskId(string) (*domain.MonitorTask, error)
	// GetActiveByServiceJob finds a pending or running task for the
	// same service and job so duplicates are not scheduled twice.
	GetActiveByServiceJob(serviceName, jobId string) (*domain.MonitorTask, error)
	GetAll(limit int) ([]*domain.MonitorTask, error)
	// GetRecoverable returns tasks a starting instance should pick up:
	// its own, unassigned pending ones, and running ones whose
	// instance stopped sending heartbeats.
	GetRecoverable(instanceId string, heartbeatBefore, now time.Time) ([]*domain.MonitorTask, error)
	// GetOrphaned returns running tasks of other instances whose
	// heartbeats stopped, excluding tasks already past their timeout.
	GetOrphaned(instanceId string, heartbeatBefore, now time.Time) ([]*domain.MonitorTask, error)
	Save(*domain.MonitorTask) error
	Update(*domain.MonitorTask) error
}
