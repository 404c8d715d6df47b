package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

const (
	heartbeatTimeout = 120 * time.Second
	recoveryInterval = 60 * time.Second
	monitorTimeout   = 30 * time.Minute
)

type StartMonitoringRequest struct {
	ServiceName       string         `json:"service_name"`
	JobId             string         `json:"job_id"`
	MonitorUrl        string         `json:"monitor_url"`
	SuccessConditions map[string]any `json:"success_conditions"`
	FailureConditions map[string]any `json:"failure_conditions"`
	CheckInterval     int            `json:"check_interval"`
}

type MonitorService interface {
	// Run blocks until the context is done,
	// checking monitored services at their intervals.
	Run(ctx context.Context) error

	StartMonitoring(StartMonitoringRequest) (string, error)
	GetStatus(taskId string) (*domain.MonitorTask, error)
	List(limit int) ([]*domain.MonitorTask, error)
	// Stop cancels a pending or running task and reports the
	// status the task ended up in.
	Stop(taskId string) (*domain.MonitorTask, error)
}

type monitorService struct {
	logger                zerolog.Logger
	monitorTaskRepository repository.MonitorTaskRepository

	instanceId    string
	checkInterval time.Duration
	scheduler     gocron.Scheduler
	checkers      map[string]MonitorChecker

	jobsMutex sync.Mutex
	jobs      map[string]uuid.UUID
}

func NewMonitorService(db config.DbIface, checkInterval time.Duration, logger *zerolog.Logger) (MonitorService, error) {
	componentLogger := logger.With().Str("component", "MonitorService").Logger()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WithMessage(err, "While creating the scheduler")
	}

	httpChecker := newHttpChecker(componentLogger)
	databaseChecker := newDatabaseChecker(componentLogger)

	return &monitorService{
		logger:                componentLogger,
		monitorTaskRepository: persistence.NewMonitorTaskRepository(db),
		instanceId:            uuid.NewString(),
		checkInterval:         checkInterval,
		scheduler:             scheduler,
		checkers: map[string]MonitorChecker{
			"http":     httpChecker,
			"https":    httpChecker,
			"database": databaseChecker,
			"oracle":   databaseChecker,
		},
		jobs: make(map[string]uuid.UUID),
	}, nil
}

// Unknown service types are probed over HTTP.
func (self *monitorService) checker(serviceName string) MonitorChecker {
	if checker, ok := self.checkers[strings.ToLower(serviceName)]; ok {
		return checker
	}
	return self.checkers["http"]
}

func (self *monitorService) Run(ctx context.Context) error {
	self.logger.Info().Str("instance", self.instanceId).Msg("Starting monitor service")

	self.scheduler.Start()

	if _, err := self.scheduler.NewJob(
		gocron.DurationJob(recoveryInterval),
		gocron.NewTask(self.recoverOrphanedTasks),
		gocron.WithName("recovery"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return errors.WithMessage(err, "While scheduling the recovery job")
	}

	self.recoverTasks()

	<-ctx.Done()

	self.logger.Info().Str("instance", self.instanceId).Msg("Stopping monitor service")
	return self.scheduler.Shutdown()
}

func (self *monitorService) StartMonitoring(request StartMonitoringRequest) (string, error) {
	logger := self.logger.With().Str("service", request.ServiceName).Str("job", request.JobId).Logger()
	logger.Trace().Msg("Starting monitoring")

	existing, err := self.monitorTaskRepository.GetActiveByServiceJob(request.ServiceName, request.JobId)
	if err != nil {
		return "", errors.WithMessage(err, "While checking for an existing monitoring task")
	}
	if existing != nil {
		logger.Debug().Str("task", existing.TaskId).Msg("Monitoring task already exists")
		return existing.TaskId, nil
	}

	now := time.Now().UTC()
	checkInterval := request.CheckInterval
	if checkInterval <= 0 {
		checkInterval = int(self.checkInterval.Seconds())
	}

	task := &domain.MonitorTask{
		TaskId:           uuid.NewString(),
		ServiceName:      request.ServiceName,
		JobId:            request.JobId,
		MonitorUrl:       request.MonitorUrl,
		Status:           domain.MonitorTaskStatusPending,
		TimeoutAt:        now.Add(monitorTimeout),
		CheckInterval:    checkInterval,
		AssignedInstance: &self.instanceId,
		LastHeartbeat:    &now,
		MaxRetries:       3,
	}
	if request.SuccessConditions != nil {
		if encoded, err := json.Marshal(request.SuccessConditions); err != nil {
			return "", errors.WithMessage(err, "While marshaling success conditions")
		} else {
			encodedStr := string(encoded)
			task.SuccessConditions = &encodedStr
		}
	}
	if request.FailureConditions != nil {
		if encoded, err := json.Marshal(request.FailureConditions); err != nil {
			return "", errors.WithMessage(err, "While marshaling failure conditions")
		} else {
			encodedStr := string(encoded)
			task.FailureConditions = &encodedStr
		}
	}

	if err := self.monitorTaskRepository.Save(task); err != nil {
		return "", errors.WithMessage(err, "While saving the monitoring task")
	}

	if err := self.scheduleCheck(task); err != nil {
		return "", err
	}

	task.Status = domain.MonitorTaskStatusRunning
	if err := self.monitorTaskRepository.Update(task); err != nil {
		return "", errors.WithMessage(err, "While updating the monitoring task")
	}

	logger.Debug().Str("task", task.TaskId).Msg("Started monitoring")
	return task.TaskId, nil
}

func (self *monitorService) GetStatus(taskId string) (*domain.MonitorTask, error) {
	task, err := self.monitorTaskRepository.GetByTaskId(taskId)
	if sqlscan.NotFound(err) {
		return nil, ErrTaskNotFound
	} else if err != nil {
		return nil, errors.WithMessagef(err, "While getting monitoring task %q", taskId)
	}
	return task, nil
}

func (self *monitorService) List(limit int) ([]*domain.MonitorTask, error) {
	tasks, err := self.monitorTaskRepository.GetAll(limit)
	if err != nil {
		return nil, errors.WithMessage(err, "While listing monitoring tasks")
	}
	return tasks, nil
}

func (self *monitorService) Stop(taskId string) (*domain.MonitorTask, error) {
	task, err := self.GetStatus(taskId)
	if err != nil {
		return nil, err
	}

	if task.Status != domain.MonitorTaskStatusPending && task.Status != domain.MonitorTaskStatusRunning {
		return task, nil
	}

	self.removeJob(taskId)

	now := time.Now().UTC()
	task.Status = domain.MonitorTaskStatusStopped
	task.CompletedAt = &now
	if err := self.monitorTaskRepository.Update(task); err != nil {
		return nil, errors.WithMessagef(err, "While stopping monitoring task %q", taskId)
	}

	self.logger.Debug().Str("task", taskId).Msg("Stopped monitoring")
	return task, nil
}

func (self *monitorService) scheduleCheck(task *domain.MonitorTask) error {
	self.removeJob(task.TaskId)

	job, err := self.scheduler.NewJob(
		gocron.DurationJob(time.Duration(task.CheckInterval)*time.Second),
		gocron.NewTask(self.executeCheck, task.TaskId),
		gocron.WithName("monitor_"+task.TaskId),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.WithMessagef(err, "While scheduling checks for task %q", task.TaskId)
	}

	self.jobsMutex.Lock()
	self.jobs[task.TaskId] = job.ID()
	self.jobsMutex.Unlock()

	return nil
}

func (self *monitorService) removeJob(taskId string) {
	self.jobsMutex.Lock()
	defer self.jobsMutex.Unlock()

	if jobId, ok := self.jobs[taskId]; ok {
		if err := self.scheduler.RemoveJob(jobId); err != nil {
			self.logger.Debug().Err(err).Str("task", taskId).Msg("Could not remove scheduled job")
		}
		delete(self.jobs, taskId)
	}
}

func (self *monitorService) executeCheck(taskId string) {
	logger := self.logger.With().Str("task", taskId).Logger()

	task, err := self.monitorTaskRepository.GetByTaskId(taskId)
	if err != nil {
		logger.Warn().Err(err).Msg("Task to check not found")
		self.removeJob(taskId)
		return
	}
	if task.Status != domain.MonitorTaskStatusRunning ||
		task.AssignedInstance == nil || *task.AssignedInstance != self.instanceId {
		logger.Warn().Msg("Task no longer assigned to this instance")
		self.removeJob(taskId)
		return
	}

	now := time.Now().UTC()
	if !task.TimeoutAt.After(now) {
		self.completeMonitoring(task, domain.MonitorTaskStatusTimeout, map[string]any{"error": "Task globally timed out"})
		return
	}

	task.LastHeartbeat = &now

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(task.CheckInterval)*time.Second)
	defer cancel()
	response := self.checker(task.ServiceName).CheckServiceStatus(ctx, task.MonitorUrl)

	if self.checker(task.ServiceName).CheckConditions(response, task.SuccessConditions) {
		self.completeMonitoring(task, domain.MonitorTaskStatusCompleted, response)
		return
	}
	if self.checker(task.ServiceName).CheckConditions(response, task.FailureConditions) {
		self.completeMonitoring(task, domain.MonitorTaskStatusFailed, response)
		return
	}

	// Persist the heartbeat and keep checking.
	if err := self.monitorTaskRepository.Update(task); err != nil {
		logger.Error().Err(err).Msg("Failed to update heartbeat")
	}
}

func (self *monitorService) completeMonitoring(task *domain.MonitorTask, status domain.MonitorTaskStatus, result map[string]any) {
	logger := self.logger.With().Str("task", task.TaskId).Logger()

	now := time.Now().UTC()
	task.Status = status
	task.CompletedAt = &now
	if encoded, err := json.Marshal(result); err == nil {
		encodedStr := string(encoded)
		task.Result = &encodedStr
	}

	self.removeJob(task.TaskId)

	if err := self.monitorTaskRepository.Update(task); err != nil {
		logger.Error().Err(err).Msg("Failed to complete monitoring task")
		return
	}
	logger.Info().Interface("status", status).Msg("Completed monitoring task")
}

// recoverTasks picks up this instance's own tasks, unassigned pending
// tasks and orphans of dead instances after a restart.
func (self *monitorService) recoverTasks() {
	now := time.Now().UTC()
	tasks, err := self.monitorTaskRepository.GetRecoverable(self.instanceId, now.Add(-heartbeatTimeout), now)
	if err != nil {
		self.logger.Error().Err(err).Msg("Failed to query recoverable tasks")
		return
	}

	recovered := 0
	for _, task := range tasks {
		if !task.TimeoutAt.After(now) {
			self.completeMonitoring(task, domain.MonitorTaskStatusTimeout, map[string]any{"error": "Task globally timed out"})
			continue
		}

		task.AssignedInstance = &self.instanceId
		task.Status = domain.MonitorTaskStatusRunning
		task.LastHeartbeat = &now
		if err := self.monitorTaskRepository.Update(task); err != nil {
			self.logger.Error().Err(err).Str("task", task.TaskId).Msg("Failed to recover task")
			continue
		}
		if err := self.scheduleCheck(task); err != nil {
			self.logger.Error().Err(err).Str("task", task.TaskId).Msg("Failed to schedule recovered task")
			continue
		}
		recovered += 1
	}

	if recovered > 0 {
		self.logger.Info().Int("count", recovered).Msg("Recovered monitoring tasks")
	}
}

// recoverOrphanedTasks periodically takes over running tasks
// whose instance stopped sending heartbeats.
func (self *monitorService) recoverOrphanedTasks() {
	now := time.Now().UTC()
	tasks, err := self.monitorTaskRepository.GetOrphaned(self.instanceId, now.Add(-heartbeatTimeout), now)
	if err != nil {
		self.logger.Error().Err(err).Msg("Failed to query orphaned tasks")
		return
	}

	recovered := 0
	for _, task := range tasks {
		task.AssignedInstance = &self.instanceId
		task.LastHeartbeat = &now
		task.RetryCount += 1

		if task.RetryCount > task.MaxRetries {
			self.completeMonitoring(task, domain.MonitorTaskStatusFailed, map[string]any{"error": "Max retries exceeded after instance failure"})
			continue
		}

		if err := self.monitorTaskRepository.Update(task); err != nil {
			self.logger.Error().Err(err).Str("task", task.TaskId).Msg("Failed to take over orphaned task")
			continue
		}
		if err := self.scheduleCheck(task); err != nil {
			self.logger.Error().Err(err).Str("task", task.TaskId).Msg("Failed to schedule orphaned task")
			continue
		}
		recovered += 1
		self.logger.Warn().Str("task", task.TaskId).Msg("Recovered orphaned task from failed instance")
	}

	if recovered > 0 {
		self.logger.Info().Int("count", recovered).Msg("Recovered orphaned tasks")
	}
}
