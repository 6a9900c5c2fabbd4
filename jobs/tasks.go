package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessDriftScan re-reads every stored permission document and
	// reports the ones that no longer line up with the module catalog.
	TaskAccessDriftScan = "access:drift-scan"
)

// DriftScanPayload configures a drift scan run.
type DriftScanPayload struct {
	// Trigger records who asked for the run ("cron" or "manual").
	Trigger string `json:"trigger"`
}

// NewDriftScanTask constructs an Asynq task.
func NewDriftScanTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "cron"
	}
	data, err := json.Marshal(DriftScanPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessDriftScan, data), nil
}
