package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MonitorTaskStatus uint

const (
	MonitorTaskStatusPending MonitorTaskStatus = iota
	MonitorTaskStatusRunning
	MonitorTaskStatusCompleted
	MonitorTaskStatusFailed
	MonitorTaskStatusTimeout
	MonitorTaskStatusStopped
)

func (self *MonitorTaskStatus) String() (string, error) {
	switch *self {
	case MonitorTaskStatusPending:
		return "pending", nil
	case MonitorTaskStatusRunning:
		return "running", nil
	case MonitorTaskStatusCompleted:
		return "completed", nil
	case MonitorTaskStatusFailed:
		return "failed", nil
	case MonitorTaskStatusTimeout:
		return "timeout", nil
	case MonitorTaskStatusStopped:
		return "stopped", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

func (self *MonitorTaskStatus) FromString(str string) error {
	switch str {
	case "pending":
		*self = MonitorTaskStatusPending
	case "running":
		*self = MonitorTaskStatusRunning
	case "completed":
		*self = MonitorTaskStatusCompleted
	case "failed":
		*self = MonitorTaskStatusFailed
	case "timeout":
		*self = MonitorTaskStatusTimeout
	case "stopped":
		*self = MonitorTaskStatusStopped
	default:
		return fmt.Errorf("Unknown value %q", str)
	}
	return nil
}

func (self *MonitorTaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

func (self MonitorTaskStatus) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

func (self *MonitorTaskStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		return self.FromString(v)
	case []byte:
		return self.FromString(string(v))
	default:
		return fmt.Errorf("Cannot scan %T into MonitorTaskStatus", value)
	}
}

func (self MonitorTaskStatus) Value() (driver.Value, error) {
	return (&self).String()
}

type MonitorTask struct {
	Id          int64             `db:"id" json:"id"`
	TaskId      string            `db:"task_id" json:"task_id"`
	ServiceName string            `db:"service_name" json:"service_name"`
	JobId       string            `db:"job_id" json:"job_id"`
	MonitorUrl  string            `db:"monitor_url" json:"monitor_url"`
	Status      MonitorTaskStatus `db:"status" json:"status"`
	Result      *string           `db:"result" json:"result"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time        `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at"`
	TimeoutAt   time.Time         `db:"timeout_at" json:"timeout_at"`

	CheckInterval     int     `db:"check_interval" json:"check_interval"`
	SuccessConditions *string `db:"success_conditions" json:"success_conditions"`
	FailureConditions *string `db:"failure_conditions" json:"failure_conditions"`

	AssignedInstance *string    `db:"assigned_instance" json:"assigned_instance"`
	LastHeartbeat    *time.Time `db:"last_heartbeat" json:"last_heartbeat"`
	RetryCount       int        `db:"retry_count" json:"retry_count"`
	MaxRetries       int        `db:"max_retries" json:"max_retries"`
}
