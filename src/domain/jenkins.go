package domain

import "strings"

type JenkinsJob struct {
	Name   string `json:"name"`
	Url    string `json:"url"`
	Status string `json:"status"`
}

type JenkinsBuild struct {
	JobName     string  `json:"job_name"`
	BuildNumber int64   `json:"build_number"`
	Result      *string `json:"result"`
	Building    bool    `json:"building"`
	Duration    int64   `json:"duration"`
	Timestamp   int64   `json:"timestamp"`
	Url         string  `json:"url"`
}

// JobStatusFromColor converts the Jenkins ball color into a readable status.
func JobStatusFromColor(color string) string {
	switch {
	case color == "blue":
		return "success"
	case color == "red":
		return "failed"
	case color == "yellow":
		return "unstable"
	case color == "grey":
		return "not_built"
	case strings.Contains(color, "anime"):
		return "building"
	default:
		return "unknown"
	}
}
