package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/plantdesk/plantdesk/internal/access"
	jobmetrics "github.com/plantdesk/plantdesk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DocumentSource streams stored permission documents by principal id.
type DocumentSource interface {
	Each(ctx context.Context, fn func(id int64, raw []byte) error) error
}

// DriftReport summarises one scan.
type DriftReport struct {
	Scanned       int
	Malformed     []int64
	OrphanModules map[string]int
}

// DriftScanJob finds stored documents that decode with issues or grant
// modules the catalog no longer knows. It never rewrites a document.
type DriftScanJob struct {
	Source  DocumentSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDriftScanJob initialises the drift scan handler.
func NewDriftScanJob(source DocumentSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *DriftScanJob {
	return &DriftScanJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the drift scan.
func (j *DriftScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("drift scan: handler not configured")
	}
	var payload DriftScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskAccessDriftScan)
	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	logger.Info("starting drift scan")

	report, err := j.Scan(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	orphans := 0
	for _, n := range report.OrphanModules {
		orphans += n
	}
	j.metrics().AddDrift(jobmetrics.DriftMalformed, len(report.Malformed))
	j.metrics().AddDrift(jobmetrics.DriftOrphanModule, orphans)

	logger.Info("completed drift scan",
		slog.Int("scanned", report.Scanned),
		slog.Int("malformed", len(report.Malformed)),
		slog.Int("orphan_modules", orphans),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

// Scan walks every document once.
func (j *DriftScanJob) Scan(ctx context.Context) (DriftReport, error) {
	if j.Source == nil {
		return DriftReport{}, errors.New("drift scan: source not configured")
	}
	report := DriftReport{OrphanModules: make(map[string]int)}
	err := j.Source.Each(ctx, func(id int64, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++
		if len(raw) == 0 {
			return nil
		}
		set, err := access.Decode(raw)
		if err != nil {
			report.Malformed = append(report.Malformed, id)
			var malformed *access.MalformedError
			if errors.As(err, &malformed) {
				j.logger().Warn("malformed permission document",
					slog.Int64("principal_id", id),
					slog.Any("issues", malformed.Issues),
				)
			}
		}
		for _, m := range set.Modules {
			if _, ok := access.ParseModule(m.Name); !ok {
				report.OrphanModules[m.Name]++
				j.logger().Warn("grant to unknown module",
					slog.Int64("principal_id", id),
					slog.String("module", m.Name),
				)
			}
		}
		return nil
	})
	return report, err
}

func (j *DriftScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAccessDriftScan))
	}
	return slog.Default().With(slog.String("job", TaskAccessDriftScan))
}

func (j *DriftScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DriftScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
