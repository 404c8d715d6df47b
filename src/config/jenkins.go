package config

import (
	"context"

	"github.com/bndr/gojenkins"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

func NewJenkinsClient(ctx context.Context) (*gojenkins.Jenkins, error) {
	url := GetenvStr("JENKINS_URL")
	if url == "" {
		return nil, errors.New("Environment variable JENKINS_URL not set or empty")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.Logger = nil

	client := gojenkins.CreateJenkins(httpClient.StandardClient(), url, GetenvStr("JENKINS_USER"), GetenvStr("JENKINS_TOKEN"))
	if _, err := client.Init(ctx); err != nil {
		return nil, errors.WithMessagef(err, "While connecting to Jenkins at %q", url)
	}
	return client, nil
}
