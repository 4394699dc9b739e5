package service

import (
	"time"

	"fmconsole/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleSessionPurge(sessionID string, after time.Duration) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleSessionPurge(sessionID string, after time.Duration) error {
	return jobs.ScheduleSessionPurge(c.client, sessionID, after)
}
