package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openhub-dev/openhub/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey   = "jobs:sync"
	popTimeout = 5 * time.Second

	KindSync = "sync_account"
	KindDeep = "deep_sync_repo"
)

// Job is one unit of background work. At-least-once delivery; every handler
// must be idempotent.
type Job struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	AccountID    string `json:"account_id"`
	RepositoryID string `json:"repository_id,omitempty"`
}

// Queue is a redis list used as a FIFO job queue.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = shared.NewID("job_")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, queueKey, data).Err()
}

// Dequeue blocks up to popTimeout for the next job. A nil job with nil error
// means the wait timed out and the caller should poll again.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// AccountLinked implements account.Events: a freshly linked account gets a
// full sync.
func (q *Queue) AccountLinked(ctx context.Context, accountID string) error {
	return q.Enqueue(ctx, &Job{Kind: KindSync, AccountID: accountID})
}

// ScheduleDeepSync implements repo.SyncScheduler.
func (q *Queue) ScheduleDeepSync(ctx context.Context, accountID, repositoryID string) error {
	return q.Enqueue(ctx, &Job{Kind: KindDeep, AccountID: accountID, RepositoryID: repositoryID})
}
