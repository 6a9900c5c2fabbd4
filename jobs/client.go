package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueDriftScan queues an out-of-schedule drift scan. Runs are unique
// for a minute, so repeated requests collapse into one.
func (c *Client) EnqueueDriftScan(ctx context.Context, trigger string) (*asynq.TaskInfo, error) {
	task, err := NewDriftScanTask(trigger)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.Unique(time.Minute), asynq.MaxRetry(3))
}

func (c *Client) Close() error {
	return c.client.Close()
}
