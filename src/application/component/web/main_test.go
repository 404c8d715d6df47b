package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"

	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type fakeCatalogService struct{}

func (self fakeCatalogService) WithQuerier(config.DbIface) service.CatalogService { return self }

func (self fakeCatalogService) GetTables() ([]string, error) {
	return []string{"EMPLOYEES", "DEPARTMENTS"}, nil
}

func (self fakeCatalogService) GetTableData(table string, page *repository.Page) ([]domain.TableRow, error) {
	if table != "EMPLOYEES" {
		return nil, service.ErrUnknownTable
	}
	page.Total = 1
	return []domain.TableRow{{Data: map[string]any{"ID": int64(1), "NAME": "alice"}}}, nil
}

type fakeJenkinsService struct{}

func (self fakeJenkinsService) GetJobs(context.Context) ([]domain.JenkinsJob, error) {
	return []domain.JenkinsJob{{Name: "deploy", Url: "http://jenkins/job/deploy", Status: "success"}}, nil
}

func (self fakeJenkinsService) TriggerBuild(ctx context.Context, jobName string, params map[string]string) (int64, error) {
	if jobName == "missing" {
		return 0, errors.New("job does not exist")
	}
	return 42, nil
}

func (self fakeJenkinsService) GetBuildStatus(ctx context.Context, jobName string, buildNumber int64) (*domain.JenkinsBuild, error) {
	result := "SUCCESS"
	return &domain.JenkinsBuild{JobName: jobName, BuildNumber: buildNumber, Result: &result}, nil
}

type fakeUserService struct{}

func (self fakeUserService) WithQuerier(config.DbIface) service.UserService { return self }

func (self fakeUserService) Register(username, email, password string) (*domain.User, error) {
	if username == "alice" {
		return nil, service.ErrUsernameTaken
	}
	return &domain.User{Id: 2, Username: username, Email: email, IsActive: true}, nil
}

func (self fakeUserService) Authenticate(username, password string) (*domain.User, error) {
	if username != "alice" || password != "secret" {
		return nil, service.ErrInvalidCredentials
	}
	return &domain.User{Id: 1, Username: "alice", Email: "alice@example.com", IsActive: true}, nil
}

func (self fakeUserService) GetByUsername(username string) (*domain.User, error) {
	return &domain.User{Id: 1, Username: username, Email: username + "@example.com", IsActive: true}, nil
}

type fakeScanService struct{}

func (self fakeScanService) WithQuerier(config.DbIface) service.ScanService { return self }

func (self fakeScanService) Trigger(ctx context.Context, user *domain.User, jobName string, params map[string]string) (*domain.ScanTask, error) {
	buildNumber := int64(42)
	return &domain.ScanTask{
		TaskId:             "11111111-2222-3333-4444-555555555555",
		JobName:            jobName,
		Status:             domain.ScanTaskStatusTriggered,
		TriggeredBy:        user.Id,
		JenkinsBuildNumber: &buildNumber,
	}, nil
}

func (self fakeScanService) GetTasks(userId int64, status *domain.ScanTaskStatus, page *repository.Page) ([]*domain.ScanTask, error) {
	page.Total = 1
	return []*domain.ScanTask{{TaskId: "task-1", JobName: "deploy", TriggeredBy: userId}}, nil
}

func (self fakeScanService) GetTasksCursor(userId int64, status *domain.ScanTaskStatus, page *repository.CursorPage) ([]*domain.ScanTask, error) {
	page.HasMore = false
	return []*domain.ScanTask{{TaskId: "task-1", JobName: "deploy", TriggeredBy: userId}}, nil
}

func (self fakeScanService) GetLatest(userId int64, limit int) ([]*domain.ScanTask, error) {
	return nil, nil
}

func (self fakeScanService) GetByTaskId(userId int64, taskId string) (*domain.ScanTask, error) {
	if taskId != "task-1" {
		return nil, service.ErrTaskNotFound
	}
	return &domain.ScanTask{TaskId: taskId, JobName: "deploy", TriggeredBy: userId}, nil
}

type fakeMonitorService struct{}

func (self fakeMonitorService) Run(ctx context.Context) error { return nil }

func (self fakeMonitorService) StartMonitoring(service.StartMonitoringRequest) (string, error) {
	return "66666666-7777-8888-9999-000000000000", nil
}

func (self fakeMonitorService) GetStatus(taskId string) (*domain.MonitorTask, error) {
	if taskId != "task-1" {
		return nil, service.ErrTaskNotFound
	}
	return &domain.MonitorTask{TaskId: taskId, ServiceName: "http", Status: domain.MonitorTaskStatusRunning}, nil
}

func (self fakeMonitorService) List(limit int) ([]*domain.MonitorTask, error) {
	return []*domain.MonitorTask{{TaskId: "task-1"}}, nil
}

func (self fakeMonitorService) Stop(taskId string) (*domain.MonitorTask, error) {
	if taskId != "task-1" {
		return nil, service.ErrTaskNotFound
	}
	return &domain.MonitorTask{TaskId: taskId, Status: domain.MonitorTaskStatusStopped}, nil
}

func buildWeb() (*Web, http.Handler) {
	logger := zerolog.Nop()
	web := &Web{
		Config:         config.WebConfig{Listen: ":0", ApiToken: "test-token"},
		Logger:         logger,
		CatalogService: fakeCatalogService{},
		JenkinsService: fakeJenkinsService{},
		UserService:    fakeUserService{},
		TokenService: service.NewTokenService(config.AuthConfig{
			JwtSecret:   []byte("test-secret"),
			TokenExpiry: 30 * time.Minute,
		}, &logger),
		ScanService:    fakeScanService{},
		MonitorService: fakeMonitorService{},
		Hub:            NewHub(nil, &logger),
	}
	return web, web.router()
}

func bearerToken(t *testing.T, web *Web) string {
	token, _, err := web.TokenService.Issue("alice")
	if err != nil {
		t.Fatalf("an error %q was not expected when issuing a token", err)
	}
	return "Bearer " + token
}

func TestShouldServeHealthWithoutToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/health").
		Expect(t).
		Assert(jsonpath.Equal(`$.status`, "ok")).
		Status(http.StatusOK).
		End()
}

func TestShouldRejectMissingApiToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestShouldRejectWrongApiToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables").
		Header("X-API-Token", "wrong").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestShouldRejectEverythingWithoutConfiguredToken(t *testing.T) {
	t.Parallel()
	web, _ := buildWeb()
	web.Config.ApiToken = ""
	handler := web.router()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables").
		Header("X-API-Token", "").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestShouldGetTablesWithToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables").
		Header("X-API-Token", "test-token").
		Expect(t).
		Assert(jsonpath.Contains(`$.tables`, "EMPLOYEES")).
		Status(http.StatusOK).
		End()
}

func TestShouldGetTableData(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables/EMPLOYEES/data").
		Header("X-API-Token", "test-token").
		Expect(t).
		Assert(jsonpath.Equal(`$.table`, "EMPLOYEES")).
		Assert(jsonpath.Equal(`$.total`, float64(1))).
		Status(http.StatusOK).
		End()
}

func TestShouldReportUnknownTable(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/oracle/tables/NOPE/data").
		Header("X-API-Token", "test-token").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestShouldTriggerJenkinsBuild(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/jenkins/jobs/deploy/build").
		Header("X-API-Token", "test-token").
		JSON(`{"BRANCH": "main"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.build_number`, float64(42))).
		Status(http.StatusOK).
		End()
}

func TestShouldLoginAndAccessProfile(t *testing.T) {
	t.Parallel()
	web, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username": "alice", "password": "secret"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.token_type`, "bearer")).
		Assert(jsonpath.Present(`$.access_token`)).
		Status(http.StatusOK).
		End()

	apitest.New().Handler(handler).
		Get("/api/auth/me").
		Header("Authorization", bearerToken(t, web)).
		Expect(t).
		Assert(jsonpath.Equal(`$.username`, "alice")).
		Status(http.StatusOK).
		End()
}

func TestShouldRejectBadCredentials(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/auth/login").
		JSON(`{"username": "alice", "password": "wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestShouldRejectConflictingRegistration(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/auth/register").
		JSON(`{"username": "alice", "email": "alice@example.com", "password": "secret"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestShouldRejectScanRoutesWithoutBearer(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/scan/tasks").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestShouldTriggerScan(t *testing.T) {
	t.Parallel()
	web, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/scan/trigger").
		Header("Authorization", bearerToken(t, web)).
		JSON(`{"job_name": "deploy"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.status`, "triggered")).
		Status(http.StatusCreated).
		End()
}

func TestShouldListScanTasksWithPagination(t *testing.T) {
	t.Parallel()
	web, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/scan/tasks").
		Query("limit", "10").
		Header("Authorization", bearerToken(t, web)).
		Expect(t).
		Assert(jsonpath.Equal(`$.total`, float64(1))).
		Assert(jsonpath.Equal(`$.page`, float64(1))).
		Status(http.StatusOK).
		End()
}

func TestShouldStartAndStopMonitoring(t *testing.T) {
	t.Parallel()
	web, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/api/monitor/start").
		Header("Authorization", bearerToken(t, web)).
		JSON(`{"service_name": "http", "job_id": "job-1", "monitor_url": "http://svc/health"}`).
		Expect(t).
		Assert(jsonpath.Present(`$.task_id`)).
		Status(http.StatusCreated).
		End()

	apitest.New().Handler(handler).
		Delete("/api/monitor/stop/task-1").
		Header("Authorization", bearerToken(t, web)).
		Expect(t).
		Assert(jsonpath.Equal(`$.status`, "stopped")).
		Status(http.StatusOK).
		End()
}

func TestShouldReportWebsocketConnectionStats(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Get("/api/ws/connections").
		Expect(t).
		Assert(jsonpath.Equal(`$.total_connections`, float64(0))).
		Assert(jsonpath.Equal(`$.users_connected`, float64(0))).
		Status(http.StatusOK).
		End()
}

func TestShouldAnswerGraphqlHealthWithoutToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/graphql").
		JSON(`{"query": "{ health }"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.data.health`, "Service is healthy")).
		Status(http.StatusOK).
		End()
}

func TestShouldGuardGraphqlQueriesWithToken(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/graphql").
		JSON(`{"query": "{ oracleTables { name } }"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().Handler(handler).
		Post("/graphql").
		Header("X-API-Token", "test-token").
		JSON(`{"query": "{ oracleTables { name } }"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.data.oracleTables[0].name`, "EMPLOYEES")).
		Status(http.StatusOK).
		End()
}

func TestShouldTriggerBuildThroughGraphql(t *testing.T) {
	t.Parallel()
	_, handler := buildWeb()

	apitest.New().Handler(handler).
		Post("/graphql").
		Header("X-API-Token", "test-token").
		JSON(`{"query": "mutation { buildJob(jobName: \"deploy\") { jobName buildNumber status } }"}`).
		Expect(t).
		Assert(jsonpath.Equal(`$.data.buildJob.status`, "triggered")).
		Assert(jsonpath.Equal(`$.data.buildJob.buildNumber`, float64(42))).
		Status(http.StatusOK).
		End()
}
