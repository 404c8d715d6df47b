package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type monitorTaskRepository struct {
	DB config.DbIface
}

func NewMonitorTaskRepository(db config.DbIface) repository.MonitorTaskRepository {
	return &monitorTaskRepository{db}
}

func (a monitorTaskRepository) WithQuerier(querier config.DbIface) repository.MonitorTaskRepository {
	return &monitorTaskRepository{querier}
}

func (a monitorTaskRepository) GetByTaskId(taskId string) (task *domain.MonitorTask, err error) {
	task = &domain.MonitorTask{}
	return task, sqlscan.Get(
		context.Background(), a.DB, task,
		`SELECT * FROM monitor_tasks WHERE task_id = :1`,
		taskId,
	)
}

func (a monitorTaskRepository) GetActiveByServiceJob(serviceName, jobId string) (*domain.MonitorTask, error) {
	task := &domain.MonitorTask{}
	err := sqlscan.Get(
		context.Background(), a.DB, task,
		`SELECT * FROM monitor_tasks
		WHERE service_name = :1 AND job_id = :2 AND status IN ('pending', 'running')
		ORDER BY created_at DESC FETCH FIRST 1 ROWS ONLY`,
		serviceName, jobId,
	)
	if sqlscan.NotFound(err) {
		return nil, nil
	}
	return task, err
}

func (a monitorTaskRepository) GetAll(limit int) (tasks []*domain.MonitorTask, err error) {
	return tasks, sqlscan.Select(
		context.Background(), a.DB, &tasks,
		`SELECT * FROM monitor_tasks ORDER BY created_at DESC FETCH FIRST :1 ROWS ONLY`,
		limit,
	)
}

func (a monitorTaskRepository) GetRecoverable(instanceId string, heartbeatBefore, now time.Time) (tasks []*domain.MonitorTask, err error) {
	return tasks, sqlscan.Select(
		context.Background(), a.DB, &tasks,
		`SELECT * FROM monitor_tasks
		WHERE status IN ('pending', 'running')
		AND timeout_at > :1
		AND (
			assigned_instance = :2
			OR (status = 'running' AND last_heartbeat < :3)
			OR (status = 'pending' AND assigned_instance IS NULL)
		)`,
		now, instanceId, heartbeatBefore,
	)
}

func (a monitorTaskRepository) GetOrphaned(instanceId string, heartbeatBefore, now time.Time) (tasks []*domain.MonitorTask, err error) {
	return tasks, sqlscan.Select(
		context.Background(), a.DB, &tasks,
		`SELECT * FROM monitor_tasks
		WHERE status = 'running'
		AND last_heartbeat < :1
		AND assigned_instance != :2
		AND timeout_at > :3`,
		heartbeatBefore, instanceId, now,
	)
}

func (a monitorTaskRepository) Save(task *domain.MonitorTask) error {
	task.CreatedAt = time.Now().UTC()
	_, err := a.DB.ExecContext(
		context.Background(),
		`INSERT INTO monitor_tasks (
			task_id, service_name, job_id, monitor_url, status, created_at, timeout_at,
			check_interval, success_conditions, failure_conditions,
			assigned_instance, last_heartbeat, retry_count, max_retries
		) VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13, :14)`,
		task.TaskId, task.ServiceName, task.JobId, task.MonitorUrl, task.Status, task.CreatedAt, task.TimeoutAt,
		task.CheckInterval, task.SuccessConditions, task.FailureConditions,
		task.AssignedInstance, task.LastHeartbeat, task.RetryCount, task.MaxRetries,
	)
	return err
}

func (a monitorTaskRepository) Update(task *domain.MonitorTask) (err error) {
	now := time.Now().UTC()
	task.UpdatedAt = &now
	_, err = a.DB.ExecContext(
		context.Background(),
		`UPDATE monitor_tasks SET
			status = :1, result = :2, updated_at = :3, completed_at = :4,
			assigned_instance = :5, last_heartbeat = :6, retry_count = :7
		WHERE task_id = :8`,
		task.Status, task.Result, task.UpdatedAt, task.CompletedAt,
		task.AssignedInstance, task.LastHeartbeat, task.RetryCount, task.TaskId,
	)
	return
}
