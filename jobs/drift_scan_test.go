package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/plantdesk/plantdesk/internal/jobs"
)

type docSource map[int64][]byte

func (d docSource) Each(ctx context.Context, fn func(id int64, raw []byte) error) error {
	for id := int64(1); id <= int64(len(d)); id++ {
		if err := fn(id, d[id]); err != nil {
			return err
		}
	}
	return nil
}

type failingSource struct{}

func (failingSource) Each(context.Context, func(int64, []byte) error) error {
	return errors.New("connection reset")
}

func TestDriftScanReportsMalformedAndOrphans(t *testing.T) {
	source := docSource{
		1: []byte(`{"role":"sales","modules":[{"name":"orders","dashboard":true,"features":[{"key":"allOrders","view":true}]}]}`),
		2: []byte(`{"role":"sales","modules":[{"name":"warehouse","features":[]},{"name":"orders","features":[{"key":"allOrders","view":"yes"}]}]}`),
		3: []byte(`not json`),
		4: []byte(`{"role":"packing","modules":[{"name":"Warehouse"}]}`),
	}
	job := NewDriftScanJob(source, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	report, err := job.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, []int64{2, 3}, report.Malformed)
	assert.Equal(t, map[string]int{"warehouse": 1, "Warehouse": 1}, report.OrphanModules)
}

func TestDriftScanHandleRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewDriftScanJob(docSource{
		1: []byte(`{"role":"sales","modules":[{"name":"warehouse"}]}`),
	}, nil, metrics)

	task, err := NewDriftScanTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	families, err := registry.Gather()
	require.NoError(t, err)
	var drift, runs float64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "plantdesk_access_drift_total":
				drift += m.GetCounter().GetValue()
			case "plantdesk_jobs_total":
				runs += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, drift)
	assert.Equal(t, 1.0, runs)
}

func TestDriftScanHandleFailures(t *testing.T) {
	job := NewDriftScanJob(failingSource{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewDriftScanTask("manual")
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(TaskAccessDriftScan, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type purgeSpy struct {
	got time.Duration
	err error
}

func (p *purgeSpy) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.got = olderThan
	return 4, p.err
}

func TestRetentionCleanupRunsEveryStore(t *testing.T) {
	keys := &purgeSpy{}
	sessions := &purgeSpy{err: errors.New("db down")}
	handler := RetentionCleanupHandler(map[string]Purger{"idempotency": keys, "sessions": sessions}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewRetentionCleanupTask(0)
	require.NoError(t, err)
	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 72*time.Hour, keys.got)
	assert.Equal(t, 72*time.Hour, sessions.got)

	bad := asynq.NewTask(TaskRetentionCleanup, []byte(`{"retention":0}`))
	assert.ErrorIs(t, handler(context.Background(), bad), asynq.SkipRetry)

	empty := RetentionCleanupHandler(nil, nil, nil)
	assert.Error(t, empty(context.Background(), task))
}
