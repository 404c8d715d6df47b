package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type scanTaskRepository struct {
	DB config.DbIface
}

func NewScanTaskRepository(db config.DbIface) repository.ScanTaskRepository {
	return &scanTaskRepository{db}
}

func (a scanTaskRepository) WithQuerier(querier config.DbIface) repository.ScanTaskRepository {
	return &scanTaskRepository{querier}
}

func (a scanTaskRepository) GetByTaskId(taskId string) (task *domain.ScanTask, err error) {
	task = &domain.ScanTask{}
	return task, sqlscan.Get(
		context.Background(), a.DB, task,
		`SELECT * FROM scan_tasks WHERE task_id = :1`,
		taskId,
	)
}

func (a scanTaskRepository) GetByUser(userId int64, status *domain.ScanTaskStatus, page *repository.Page) ([]*domain.ScanTask, error) {
	tasks := make([]*domain.ScanTask, page.Limit)
	if status != nil {
		return tasks, fetchPage(
			a.DB, page, &tasks,
			`*`, `scan_tasks WHERE triggered_by = :1 AND status = :2`, `created_at DESC`,
			userId, status,
		)
	}
	return tasks, fetchPage(
		a.DB, page, &tasks,
		`*`, `scan_tasks WHERE triggered_by = :1`, `created_at DESC`,
		userId,
	)
}

// GetByUserCursor fetches one row more than the limit to learn
// whether another page exists without a separate count query.
func (a scanTaskRepository) GetByUserCursor(userId int64, status *domain.ScanTaskStatus, page *repository.CursorPage) ([]*domain.ScanTask, error) {
	query := `SELECT * FROM scan_tasks WHERE triggered_by = :1`
	args := []interface{}{userId}

	if status != nil {
		args = append(args, status)
		query += ` AND status = :2`
	}
	if page.Cursor != nil {
		args = append(args, *page.Cursor)
		query += ` AND id < :` + strconv.Itoa(len(args))
	}

	args = append(args, page.Limit+1)
	query += ` ORDER BY id DESC FETCH FIRST :` + strconv.Itoa(len(args)) + ` ROWS ONLY`

	var tasks []*domain.ScanTask
	if err := sqlscan.Select(context.Background(), a.DB, &tasks, query, args...); err != nil {
		return nil, err
	}

	page.HasMore = len(tasks) > page.Limit
	page.NextCursor = nil
	if page.HasMore {
		tasks = tasks[:page.Limit]
		page.NextCursor = &tasks[len(tasks)-1].Id
	}

	return tasks, nil
}

func (a scanTaskRepository) GetLatestByUser(userId int64, limit int) (tasks []*domain.ScanTask, err error) {
	return tasks, sqlscan.Select(
		context.Background(), a.DB, &tasks,
		`SELECT * FROM scan_tasks WHERE triggered_by = :1 ORDER BY created_at DESC FETCH FIRST :2 ROWS ONLY`,
		userId, limit,
	)
}

func (a scanTaskRepository) Save(task *domain.ScanTask) error {
	task.CreatedAt = time.Now().UTC()
	_, err := a.DB.ExecContext(
		context.Background(),
		`INSERT INTO scan_tasks (task_id, job_name, jenkins_build_number, status, triggered_by, parameters, created_at)
		VALUES (:1, :2, :3, :4, :5, :6, :7)`,
		task.TaskId, task.JobName, task.JenkinsBuildNumber, task.Status, task.TriggeredBy, task.Parameters, task.CreatedAt,
	)
	return err
}

func (a scanTaskRepository) Update(task *domain.ScanTask) (err error) {
	now := time.Now().UTC()
	task.UpdatedAt = &now
	_, err = a.DB.ExecContext(
		context.Background(),
		`UPDATE scan_tasks SET jenkins_build_number = :1, status = :2, result = :3, updated_at = :4, completed_at = :5 WHERE task_id = :6`,
		task.JenkinsBuildNumber, task.Status, task.Result, task.UpdatedAt, task.CompletedAt, task.TaskId,
	)
	return
}
