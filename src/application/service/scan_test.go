package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/operify/opsgate/src/domain"
)

// scriptedJenkinsService replays a fixed sequence of build states,
// repeating the last one once the script runs out.
type scriptedJenkinsService struct {
	mutex  sync.Mutex
	builds []*domain.JenkinsBuild
}

func (self *scriptedJenkinsService) GetJobs(context.Context) ([]domain.JenkinsJob, error) {
	return nil, nil
}

func (self *scriptedJenkinsService) TriggerBuild(ctx context.Context, jobName string, params map[string]string) (int64, error) {
	return 42, nil
}

func (self *scriptedJenkinsService) GetBuildStatus(ctx context.Context, jobName string, buildNumber int64) (*domain.JenkinsBuild, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	build := self.builds[0]
	if len(self.builds) > 1 {
		self.builds = self.builds[1:]
	}
	return build, nil
}

type recordingNotifier struct {
	mutex    sync.Mutex
	statuses []domain.ScanTaskStatus
}

func (self *recordingNotifier) NotifyTaskUpdate(task *domain.ScanTask) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.statuses = append(self.statuses, task.Status)
}

func scanTaskRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "task_id", "job_name", "jenkins_build_number", "status", "triggered_by", "parameters", "result", "created_at", "updated_at", "completed_at"}).
		AddRow(int64(1), "task-1", "security-scan", int64(42), "triggered", int64(1), nil, nil, time.Now().UTC(), nil, nil)
}

func buildScanService(t *testing.T, jenkins JenkinsService, notifier TaskNotifier) (*scanService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := zerolog.Nop()
	service := NewScanService(db, jenkins, notifier, &logger).(*scanService)
	service.watchEvery = time.Millisecond
	return service, mock
}

func TestShouldFollowBuildToCompletion(t *testing.T) {
	t.Parallel()

	// given a build that is running on the first poll and succeeds on the second
	result := "SUCCESS"
	jenkins := &scriptedJenkinsService{builds: []*domain.JenkinsBuild{
		{JobName: "security-scan", BuildNumber: 42, Building: true},
		{JobName: "security-scan", BuildNumber: 42, Result: &result},
	}}
	notifier := &recordingNotifier{}
	service, mock := buildScanService(t, jenkins, notifier)
	mock.ExpectQuery("SELECT (.*) FROM scan_tasks WHERE task_id").
		WithArgs("task-1").
		WillReturnRows(scanTaskRows())
	mock.ExpectExec("UPDATE scan_tasks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scan_tasks").WillReturnResult(sqlmock.NewResult(0, 1))

	// when
	service.watchBuild("task-1", "security-scan", 42)

	// then the task went through running to completed, with a push for each step
	assert.Equal(t, []domain.ScanTaskStatus{domain.ScanTaskStatusRunning, domain.ScanTaskStatusCompleted}, notifier.statuses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShouldMarkTaskFailedOnBrokenBuild(t *testing.T) {
	t.Parallel()

	// given a build that finished without success
	result := "FAILURE"
	jenkins := &scriptedJenkinsService{builds: []*domain.JenkinsBuild{
		{JobName: "security-scan", BuildNumber: 42, Result: &result},
	}}
	notifier := &recordingNotifier{}
	service, mock := buildScanService(t, jenkins, notifier)
	mock.ExpectQuery("SELECT (.*) FROM scan_tasks WHERE task_id").
		WithArgs("task-1").
		WillReturnRows(scanTaskRows())
	mock.ExpectExec("UPDATE scan_tasks").WillReturnResult(sqlmock.NewResult(0, 1))

	// when
	service.watchBuild("task-1", "security-scan", 42)

	// then
	assert.Equal(t, []domain.ScanTaskStatus{domain.ScanTaskStatusFailed}, notifier.statuses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShouldTimeOutBuildWatch(t *testing.T) {
	t.Parallel()

	// given a build that never leaves the running state
	jenkins := &scriptedJenkinsService{builds: []*domain.JenkinsBuild{
		{JobName: "security-scan", BuildNumber: 42, Building: true},
	}}
	notifier := &recordingNotifier{}
	service, mock := buildScanService(t, jenkins, notifier)
	service.watchAttempts = 3
	mock.ExpectQuery("SELECT (.*) FROM scan_tasks WHERE task_id").
		WithArgs("task-1").
		WillReturnRows(scanTaskRows())
	mock.ExpectExec("UPDATE scan_tasks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scan_tasks").WillReturnResult(sqlmock.NewResult(0, 1))

	// when
	service.watchBuild("task-1", "security-scan", 42)

	// then the watch gave up and the task is marked as timed out
	assert.Equal(t, []domain.ScanTaskStatus{domain.ScanTaskStatusRunning, domain.ScanTaskStatusTimeout}, notifier.statuses)
	assert.NoError(t, mock.ExpectationsWereMet())
}
