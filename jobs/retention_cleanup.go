package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/plantdesk/plantdesk/internal/jobs"
)

// TaskRetentionCleanup purges idempotency keys and expired login session
// records past their retention.
const TaskRetentionCleanup = "retention:cleanup"

const defaultRetention = 72 * time.Hour

// RetentionPayload carries the retention window.
type RetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// Purger deletes stored rows older than a cutoff.
type Purger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewRetentionCleanupTask constructs an Asynq task. Non-positive retention
// falls back to 72 hours.
func NewRetentionCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = defaultRetention
	}
	body, err := json.Marshal(RetentionPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionCleanup, body, asynq.Queue(QueueDefault)), nil
}

// RetentionCleanupHandler runs every named purger. A failing purger does
// not stop the others; the joined error fails the task. Nil metrics fall
// back to the default registerer.
func RetentionCleanupHandler(purgers map[string]Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	names := make([]string, 0, len(purgers))
	for name := range purgers {
		names = append(names, name)
	}
	slices.Sort(names)

	return func(ctx context.Context, t *asynq.Task) error {
		if len(names) == 0 {
			return errors.New("retention cleanup: no stores configured")
		}
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Retention <= 0 {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskRetentionCleanup)
		var errs []error
		for _, name := range names {
			removed, err := purgers[name].Cleanup(ctx, payload.Retention)
			if err != nil {
				logger.Error("retention cleanup", slog.String("store", name), slog.Any("error", err))
				errs = append(errs, err)
				continue
			}
			logger.Info("retention cleanup", slog.String("store", name), slog.Int64("removed", removed))
		}
		return tracker.End(errors.Join(errs...))
	}
}
