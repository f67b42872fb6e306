package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzExpirySweep finds users whose assignments just lapsed and
	// invalidates their cached permissions.
	TaskAuthzExpirySweep = "authz:expiry_sweep"
)

// ExpirySweepPayload configures one sweep run.
type ExpirySweepPayload struct {
	Lookback time.Duration `json:"lookback"`
}

// NewExpirySweepTask constructs an Asynq task.
func NewExpirySweepTask(lookback time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ExpirySweepPayload{Lookback: lookback})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzExpirySweep, data), nil
}
