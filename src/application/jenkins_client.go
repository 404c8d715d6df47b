package application

import (
	"context"

	"github.com/bndr/gojenkins"
)

type JenkinsClient interface {
	GetAllJobNames(ctx context.Context) ([]gojenkins.InnerJob, error)
	BuildJob(ctx context.Context, name string, params map[string]string) (int64, error)
	GetQueueItem(ctx context.Context, id int64) (*gojenkins.Task, error)
	GetBuild(ctx context.Context, jobName string, number int64) (*gojenkins.Build, error)
}

type jenkinsClient struct {
	jClient *gojenkins.Jenkins
}

func NewJenkinsClient(jClient *gojenkins.Jenkins) JenkinsClient {
	return &jenkinsClient{
		jClient: jClient,
	}
}

func (self *jenkinsClient) GetAllJobNames(ctx context.Context) ([]gojenkins.InnerJob, error) {
	return self.jClient.GetAllJobNames(ctx)
}

func (self *jenkinsClient) BuildJob(ctx context.Context, name string, params map[string]string) (int64, error) {
	return self.jClient.BuildJob(ctx, name, params)
}

func (self *jenkinsClient) GetQueueItem(ctx context.Context, id int64) (*gojenkins.Task, error) {
	return self.jClient.GetQueueItem(ctx, id)
}

func (self *jenkinsClient) GetBuild(ctx context.Context, jobName string, number int64) (*gojenkins.Build, error) {
	return self.jClient.GetBuild(ctx, jobName, number)
}
