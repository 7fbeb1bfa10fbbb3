/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package idverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/rentbase/idverify/config"
	redis_db "github.com/rentbase/idverify/internal/redis-db"
)

const (
	StatusCheckQueue = "verification_status"
	StatusCheckTask  = "verification:status_check"

	statusCheckMaxRetry = 3
)

// StatusCheck is the payload of a scheduled status check. Poll counts the
// checks made so far for the reference, starting at 1.
type StatusCheck struct {
	Provider    string     `json:"provider"`
	Reference   string     `json:"reference"`
	Poll        int        `json:"poll"`
	FirstPollAt *time.Time `json:"first_poll_at,omitempty"`
}

func NewStatusCheck(provider, reference string) StatusCheck {
	return StatusCheck{
		Provider:    provider,
		Reference:   reference,
		Poll:        1,
		FirstPollAt: ptr.Time(time.Now().UTC()),
	}
}

// Next is the check scheduled after this one.
func (c StatusCheck) Next() StatusCheck {
	next := c
	next.Poll++
	return next
}

// PendingFor is how long the reference has been polled as of now. Checks
// scheduled without a first poll time report zero.
func (c StatusCheck) PendingFor(now time.Time) time.Duration {
	if c.FirstPollAt == nil || now.Before(*c.FirstPollAt) {
		return 0
	}
	return now.Sub(*c.FirstPollAt)
}

// TaskID makes a check idempotent: scheduling the same poll twice is a no-op.
func (c StatusCheck) TaskID() string {
	return fmt.Sprintf("%s:%s:%d", c.Provider, c.Reference, c.Poll)
}

// ParseStatusCheck decodes the payload of a status check task.
func ParseStatusCheck(t *asynq.Task) (StatusCheck, error) {
	var check StatusCheck
	if err := json.Unmarshal(t.Payload(), &check); err != nil {
		return StatusCheck{}, err
	}
	if check.Provider == "" || check.Reference == "" {
		return StatusCheck{}, errors.New("status check task without provider or reference")
	}
	return check, nil
}

// Queue schedules status checks on asynq.
type Queue struct {
	Client       *asynq.Client
	PollInterval time.Duration
}

// RedisConnOpt converts parsed redis options into asynq connection options.
func RedisConnOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

func NewQueue(conf *config.Configuration) (*Queue, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return &Queue{
		Client:       asynq.NewClient(RedisConnOpt(redisOption)),
		PollInterval: conf.Verification.PollInterval(),
	}, nil
}

// ScheduleStatusCheck enqueues check to run after the poll interval.
func (q *Queue) ScheduleStatusCheck(ctx context.Context, check StatusCheck) error {
	ctx, span := tracer.Start(ctx, "Scheduling status check")
	defer span.End()

	payload, err := json.Marshal(check)
	if err != nil {
		return err
	}

	task := asynq.NewTask(StatusCheckTask, payload)
	info, err := q.Client.EnqueueContext(ctx, task,
		asynq.TaskID(check.TaskID()),
		asynq.Queue(StatusCheckQueue),
		asynq.ProcessIn(q.PollInterval),
		asynq.MaxRetry(statusCheckMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.Debugf("status check %s already scheduled", check.TaskID())
		return nil
	}
	if err != nil {
		logrus.Error(err, info)
		return err
	}
	logrus.Infof(" [*] Scheduled status check %s in %v", check.TaskID(), q.PollInterval)
	return nil
}

func (q *Queue) Close() error {
	return q.Client.Close()
}
