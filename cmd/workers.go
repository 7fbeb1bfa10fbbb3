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
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/rentbase/idverify"
	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/internal/notification"
	redis_db "github.com/rentbase/idverify/internal/redis-db"
)

// processStatusCheck re-polls one pending verification. A check whose
// reference is being polled elsewhere is dropped, the holder reschedules.
func (app *idverifyInstance) processStatusCheck(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("idverify.status.worker").Start(ctx, "Process Status Check From Redis Queue")
	defer span.End()

	check, err := idverify.ParseStatusCheck(t)
	if err != nil {
		logrus.Error(err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := app.service.PollStatus(ctx, check)
	if err != nil {
		if errors.Is(err, idverify.ErrPollInProgress) {
			logrus.Infof("status check for %s/%s already in progress, skipping", check.Provider, check.Reference)
			return nil
		}
		notification.NotifyError(err)
		return err
	}

	log.Printf(" [*] Status check %s/%s poll %d: %s", check.Provider, check.Reference, check.Poll, result.Status)
	return nil
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		idverify.RedisConnOpt(redisOption),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				idverify.StatusCheckQueue: 1,
			},
		},
	), nil
}

// workerCommands defines the "workers" command which drains the status queue.
func workerCommands(app *idverifyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start idverify workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			phClient, shutdown, err := initializeObservability(ctx, app.cnf)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			if err := app.setupService(); err != nil {
				return err
			}
			defer app.close()

			srv, err := initializeWorkerServer(app.cnf)
			if err != nil {
				return err
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(idverify.StatusCheckTask, app.processStatusCheck)

			if err := srv.Run(mux); err != nil {
				return fmt.Errorf("could not run worker server: %w", err)
			}
			return nil
		},
	}

	return cmd
}
