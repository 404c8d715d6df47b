package persistence

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

func TestShouldSaveScanTask(t *testing.T) {
	t.Parallel()

	task := domain.ScanTask{
		TaskId:      uuid.NewString(),
		JobName:     "security-scan",
		Status:      domain.ScanTaskStatusPending,
		TriggeredBy: 1,
	}

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO scan_tasks").
		WithArgs(task.TaskId, task.JobName, nil, task.Status, task.TriggeredBy, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	repository := NewScanTaskRepository(db)

	// when
	err = repository.Save(&task)

	// then
	assert.Nil(t, err)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestShouldUpdateScanTask(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	buildNumber := int64(42)

	task := domain.ScanTask{
		TaskId:             uuid.NewString(),
		JobName:            "security-scan",
		JenkinsBuildNumber: &buildNumber,
		Status:             domain.ScanTaskStatusCompleted,
		TriggeredBy:        1,
		CompletedAt:        &now,
	}

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectExec("UPDATE scan_tasks").
		WithArgs(task.JenkinsBuildNumber, task.Status, nil, sqlmock.AnyArg(), task.CompletedAt, task.TaskId).
		WillReturnResult(sqlmock.NewResult(0, 1))
	repository := NewScanTaskRepository(db)

	// when
	err = repository.Update(&task)

	// then
	assert.Nil(t, err)
}

func TestShouldGetScanTasksByUserCursor(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	page := repository.CursorPage{Limit: 2}

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	rows := sqlmock.NewRows([]string{"id", "task_id", "job_name", "status", "triggered_by", "created_at"}).
		AddRow(int64(9), uuid.NewString(), "security-scan", "completed", int64(1), now).
		AddRow(int64(7), uuid.NewString(), "security-scan", "failed", int64(1), now).
		AddRow(int64(5), uuid.NewString(), "security-scan", "pending", int64(1), now)
	mock.ExpectQuery("SELECT (.*) FROM scan_tasks WHERE triggered_by").
		WithArgs(int64(1), 3).
		WillReturnRows(rows)
	repository := NewScanTaskRepository(db)

	// when
	tasks, err := repository.GetByUserCursor(1, nil, &page)

	// then
	assert.Nil(t, err)
	assert.Len(t, tasks, 2)
	assert.True(t, page.HasMore)
	if assert.NotNil(t, page.NextCursor) {
		assert.Equal(t, int64(7), *page.NextCursor)
	}
}
