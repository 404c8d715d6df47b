package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

const (
	// The watcher gives a build this many one-second attempts
	// before the task is marked as timed out.
	watchMaxAttempts = 300
	watchInterval    = 1 * time.Second
	watchErrPenalty  = 5
)

var ErrTaskNotFound = errors.New("Task not found")

// TaskNotifier pushes task state changes to connected clients.
type TaskNotifier interface {
	NotifyTaskUpdate(*domain.ScanTask)
}

type ScanService interface {
	WithQuerier(config.DbIface) ScanService

	Trigger(ctx context.Context, user *domain.User, jobName string, params map[string]string) (*domain.ScanTask, error)
	GetTasks(userId int64, status *domain.ScanTaskStatus, page *repository.Page) ([]*domain.ScanTask, error)
	GetTasksCursor(userId int64, status *domain.ScanTaskStatus, page *repository.CursorPage) ([]*domain.ScanTask, error)
	GetLatest(userId int64, limit int) ([]*domain.ScanTask, error)
	GetByTaskId(userId int64, taskId string) (*domain.ScanTask, error)
}

type scanService struct {
	logger             zerolog.Logger
	scanTaskRepository repository.ScanTaskRepository
	jenkinsService     JenkinsService
	notifier           TaskNotifier

	watchAttempts int
	watchEvery    time.Duration
}

func NewScanService(db config.DbIface, jenkinsService JenkinsService, notifier TaskNotifier, logger *zerolog.Logger) ScanService {
	return &scanService{
		logger:             logger.With().Str("component", "ScanService").Logger(),
		scanTaskRepository: persistence.NewScanTaskRepository(db),
		jenkinsService:     jenkinsService,
		notifier:           notifier,
		watchAttempts:      watchMaxAttempts,
		watchEvery:         watchInterval,
	}
}

func (self *scanService) WithQuerier(querier config.DbIface) ScanService {
	return &scanService{
		logger:             self.logger,
		scanTaskRepository: self.scanTaskRepository.WithQuerier(querier),
		jenkinsService:     self.jenkinsService,
		notifier:           self.notifier,
		watchAttempts:      self.watchAttempts,
		watchEvery:         self.watchEvery,
	}
}

func (self scanService) Trigger(ctx context.Context, user *domain.User, jobName string, params map[string]string) (*domain.ScanTask, error) {
	logger := self.logger.With().Str("job", jobName).Int64("user", user.Id).Logger()
	logger.Trace().Msg("Triggering scan task")

	task := &domain.ScanTask{
		TaskId:      uuid.NewString(),
		JobName:     jobName,
		Status:      domain.ScanTaskStatusPending,
		TriggeredBy: user.Id,
	}
	if len(params) > 0 {
		if encoded, err := json.Marshal(params); err != nil {
			return nil, errors.WithMessage(err, "While marshaling parameters")
		} else {
			encodedStr := string(encoded)
			task.Parameters = &encodedStr
		}
	}
	if err := self.scanTaskRepository.Save(task); err != nil {
		return nil, errors.WithMessage(err, "While saving the scan task")
	}

	buildNumber, err := self.jenkinsService.TriggerBuild(ctx, jobName, params)
	if err != nil {
		task.Status = domain.ScanTaskStatusFailed
		if encoded, marshalErr := json.Marshal(map[string]string{"error": err.Error()}); marshalErr == nil {
			encodedStr := string(encoded)
			task.Result = &encodedStr
		}
		if updateErr := self.scanTaskRepository.Update(task); updateErr != nil {
			logger.Error().Err(updateErr).Str("task", task.TaskId).Msg("Failed to mark task as failed")
		}
		self.notifier.NotifyTaskUpdate(task)
		return task, errors.WithMessagef(err, "While triggering build of job %q", jobName)
	}

	task.JenkinsBuildNumber = &buildNumber
	if buildNumber > 0 {
		task.Status = domain.ScanTaskStatusTriggered
	} else {
		task.Status = domain.ScanTaskStatusFailed
	}
	if err := self.scanTaskRepository.Update(task); err != nil {
		return nil, errors.WithMessage(err, "While updating the scan task")
	}
	self.notifier.NotifyTaskUpdate(task)

	if buildNumber > 0 {
		go self.watchBuild(task.TaskId, jobName, buildNumber)
	}

	logger.Trace().Str("task", task.TaskId).Int64("buildNumber", buildNumber).Msg("Triggered scan task")
	return task, nil
}

// watchBuild follows a running build and mirrors its state
// onto the task until the build finishes or the watch times out.
func (self scanService) watchBuild(taskId, jobName string, buildNumber int64) {
	logger := self.logger.With().Str("task", taskId).Str("job", jobName).Int64("buildNumber", buildNumber).Logger()

	task, err := self.scanTaskRepository.GetByTaskId(taskId)
	if err != nil {
		logger.Error().Err(err).Msg("Task to watch not found")
		return
	}

	for attempt := 0; attempt < self.watchAttempts; {
		build, err := self.jenkinsService.GetBuildStatus(context.Background(), jobName, buildNumber)
		if err != nil {
			logger.Debug().Err(err).Msg("Error while watching build")
			time.Sleep(watchErrPenalty * self.watchEvery)
			attempt += watchErrPenalty
			continue
		}

		if build.Building {
			if task.Status != domain.ScanTaskStatusRunning {
				task.Status = domain.ScanTaskStatusRunning
				if err := self.scanTaskRepository.Update(task); err != nil {
					logger.Error().Err(err).Msg("Failed to mark task as running")
				}
				self.notifier.NotifyTaskUpdate(task)
			}
		} else {
			if build.Result != nil && *build.Result == "SUCCESS" {
				task.Status = domain.ScanTaskStatusCompleted
			} else {
				task.Status = domain.ScanTaskStatusFailed
			}
			if encoded, err := json.Marshal(build); err == nil {
				encodedStr := string(encoded)
				task.Result = &encodedStr
			}
			now := time.Now().UTC()
			task.CompletedAt = &now
			if err := self.scanTaskRepository.Update(task); err != nil {
				logger.Error().Err(err).Msg("Failed to mark task as finished")
			}
			self.notifier.NotifyTaskUpdate(task)
			logger.Debug().Interface("status", task.Status).Msg("Build finished")
			return
		}

		time.Sleep(self.watchEvery)
		attempt += 1
	}

	task.Status = domain.ScanTaskStatusTimeout
	if err := self.scanTaskRepository.Update(task); err != nil {
		logger.Error().Err(err).Msg("Failed to mark task as timed out")
	}
	self.notifier.NotifyTaskUpdate(task)
	logger.Warn().Msg("Build watch timed out")
}

func (self scanService) GetTasks(userId int64, status *domain.ScanTaskStatus, page *repository.Page) (tasks []*domain.ScanTask, err error) {
	self.logger.Trace().Int64("user", userId).Msg("Getting scan tasks")
	tasks, err = self.scanTaskRepository.GetByUser(userId, status, page)
	if err != nil {
		err = errors.WithMessagef(err, "While getting scan tasks of user %d", userId)
		return
	}
	self.logger.Trace().Int("count", len(tasks)).Msg("Got scan tasks")
	return
}

func (self scanService) GetTasksCursor(userId int64, status *domain.ScanTaskStatus, page *repository.CursorPage) (tasks []*domain.ScanTask, err error) {
	self.logger.Trace().Int64("user", userId).Msg("Getting scan tasks by cursor")
	tasks, err = self.scanTaskRepository.GetByUserCursor(userId, status, page)
	if err != nil {
		err = errors.WithMessagef(err, "While getting scan tasks of user %d", userId)
		return
	}
	self.logger.Trace().Int("count", len(tasks)).Msg("Got scan tasks by cursor")
	return
}

func (self scanService) GetLatest(userId int64, limit int) (tasks []*domain.ScanTask, err error) {
	return self.scanTaskRepository.GetLatestByUser(userId, limit)
}

func (self scanService) GetByTaskId(userId int64, taskId string) (*domain.ScanTask, error) {
	task, err := self.scanTaskRepository.GetByTaskId(taskId)
	if sqlscan.NotFound(err) {
		return nil, ErrTaskNotFound
	} else if err != nil {
		return nil, errors.WithMessagef(err, "While getting scan task %q", taskId)
	}
	// Tasks are only visible to the user that triggered them.
	if task.TriggeredBy != userId {
		return nil, ErrTaskNotFound
	}
	return task, nil
}
