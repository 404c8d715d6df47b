package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ScanTaskStatus uint

const (
	ScanTaskStatusPending ScanTaskStatus = iota
	ScanTaskStatusTriggered
	ScanTaskStatusRunning
	ScanTaskStatusCompleted
	ScanTaskStatusFailed
	ScanTaskStatusTimeout
)

func (self *ScanTaskStatus) String() (string, error) {
	switch *self {
	case ScanTaskStatusPending:
		return "pending", nil
	case ScanTaskStatusTriggered:
		return "triggered", nil
	case ScanTaskStatusRunning:
		return "running", nil
	case ScanTaskStatusCompleted:
		return "completed", nil
	case ScanTaskStatusFailed:
		return "failed", nil
	case ScanTaskStatusTimeout:
		return "timeout", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

func (self *ScanTaskStatus) FromString(str string) error {
	switch str {
	case "pending":
		*self = ScanTaskStatusPending
	case "triggered":
		*self = ScanTaskStatusTriggered
	case "running":
		*self = ScanTaskStatusRunning
	case "completed":
		*self = ScanTaskStatusCompleted
	case "failed":
		*self = ScanTaskStatusFailed
	case "timeout":
		*self = ScanTaskStatusTimeout
	default:
		return fmt.Errorf("Unknown value %q", str)
	}
	return nil
}

func (self *ScanTaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

func (self ScanTaskStatus) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

func (self *ScanTaskStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		return self.FromString(v)
	case []byte:
		return self.FromString(string(v))
	default:
		return fmt.Errorf("Cannot scan %T into ScanTaskStatus", value)
	}
}

func (self ScanTaskStatus) Value() (driver.Value, error) {
	return (&self).String()
}

type ScanTask struct {
	Id                 int64          `db:"id" json:"id"`
	TaskId             string         `db:"task_id" json:"task_id"`
	JobName            string         `db:"job_name" json:"job_name"`
	JenkinsBuildNumber *int64         `db:"jenkins_build_number" json:"jenkins_build_number"`
	Status             ScanTaskStatus `db:"status" json:"status"`
	TriggeredBy        int64          `db:"triggered_by" json:"triggered_by"`
	Parameters         *string        `db:"parameters" json:"parameters"`
	Result             *string        `db:"result" json:"result"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time     `db:"updated_at" json:"updated_at"`
	CompletedAt        *time.Time     `db:"completed_at" json:"completed_at"`
}
