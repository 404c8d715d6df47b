package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/application"
	"github.com/operify/opsgate/src/domain"
)

const (
	queuePollAttempts = 10
	queuePollInterval = 1 * time.Second
)

type JenkinsService interface {
	GetJobs(context.Context) ([]domain.JenkinsJob, error)
	// TriggerBuild returns the build number, or -1 when the build was
	// queued but no number could be resolved within the polling window.
	TriggerBuild(ctx context.Context, jobName string, params map[string]string) (int64, error)
	GetBuildStatus(ctx context.Context, jobName string, buildNumber int64) (*domain.JenkinsBuild, error)
}

type jenkinsService struct {
	logger        zerolog.Logger
	jenkinsClient application.JenkinsClient
}

func NewJenkinsService(jenkinsClient application.JenkinsClient, logger *zerolog.Logger) JenkinsService {
	return &jenkinsService{
		logger:        logger.With().Str("component", "JenkinsService").Logger(),
		jenkinsClient: jenkinsClient,
	}
}

func (self jenkinsService) GetJobs(ctx context.Context) ([]domain.JenkinsJob, error) {
	self.logger.Trace().Msg("Getting jobs")

	innerJobs, err := self.jenkinsClient.GetAllJobNames(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "While getting jobs")
	}

	jobs := make([]domain.JenkinsJob, 0, len(innerJobs))
	for _, job := range innerJobs {
		jobs = append(jobs, domain.JenkinsJob{
			Name:   job.Name,
			Url:    job.Url,
			Status: domain.JobStatusFromColor(job.Color),
		})
	}

	self.logger.Trace().Int("count", len(jobs)).Msg("Got jobs")
	return jobs, nil
}

func (self jenkinsService) TriggerBuild(ctx context.Context, jobName string, params map[string]string) (int64, error) {
	logger := self.logger.With().Str("job", jobName).Logger()
	logger.Trace().Msg("Triggering build")

	queueId, err := self.jenkinsClient.BuildJob(ctx, jobName, params)
	if err != nil {
		return 0, errors.WithMessagef(err, "While triggering build of job %q", jobName)
	}

	// Poll the queue until the build number is assigned.
	for attempt := 0; attempt < queuePollAttempts; attempt += 1 {
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(queuePollInterval):
		}

		task, err := self.jenkinsClient.GetQueueItem(ctx, queueId)
		if err != nil {
			logger.Debug().Err(err).Int64("queueId", queueId).Msg("Queue item not ready yet")
			continue
		}
		if task.Raw.Executable.Number != 0 {
			logger.Trace().Int64("buildNumber", task.Raw.Executable.Number).Msg("Triggered build")
			return task.Raw.Executable.Number, nil
		}
	}

	// Queued but never assigned a number within the polling window.
	logger.Debug().Int64("queueId", queueId).Msg("Build queued but number not resolved")
	return -1, nil
}

func (self jenkinsService) GetBuildStatus(ctx context.Context, jobName string, buildNumber int64) (*domain.JenkinsBuild, error) {
	logger := self.logger.With().Str("job", jobName).Int64("buildNumber", buildNumber).Logger()
	logger.Trace().Msg("Getting build status")

	build, err := self.jenkinsClient.GetBuild(ctx, jobName, buildNumber)
	if err != nil {
		return nil, errors.WithMessagef(err, "While getting build %d of job %q", buildNumber, jobName)
	}

	status := domain.JenkinsBuild{
		JobName:     jobName,
		BuildNumber: buildNumber,
		Building:    build.Raw.Building,
		Duration:    int64(build.Raw.Duration),
		Timestamp:   build.Raw.Timestamp,
		Url:         build.Raw.URL,
	}
	if build.Raw.Result != "" {
		result := build.Raw.Result
		status.Result = &result
	}

	logger.Trace().Bool("building", status.Building).Msg("Got build status")
	return &status, nil
}
