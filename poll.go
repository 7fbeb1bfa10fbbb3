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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	redlock "github.com/rentbase/idverify/internal/lock"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
)

// ErrPollInProgress is returned by PollStatus when another worker holds the
// reference's lock.
var ErrPollInProgress = errors.New("status check already in progress for reference")

// PollStatus runs one scheduled status check. A PENDING answer schedules the
// next check until maxPolls is reached, after which the reference is
// abandoned as FAILED with PROVIDER_TIMEOUT. Network failures and timeouts
// are polled again within the same budget; any other result is final.
func (v *IDVerify) PollStatus(ctx context.Context, check StatusCheck) (model.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "Polling pending verification", trace.WithAttributes(
		attribute.String("provider", check.Provider),
		attribute.String("reference", check.Reference),
		attribute.Int("poll", check.Poll),
	))
	defer span.End()

	locker := redlock.NewLocker(v.redis, redlock.ReferenceKey(check.Provider, check.Reference), uuid.NewString())
	if err := locker.Lock(ctx, v.lockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return model.VerificationResult{}, ErrPollInProgress
		}
		return model.VerificationResult{}, err
	}
	defer func() {
		if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logrus.Warnf("failed to release %s: %v", locker.Key(), err)
		}
	}()

	fields := logrus.Fields{
		"provider":  check.Provider,
		"reference": check.Reference,
		"poll":      check.Poll,
	}

	result := v.orchestrator.CheckStatus(ctx, check.Provider, check.Reference)
	if !kyc.IsOpen(result) {
		v.storeResult(ctx, result)
		return result, nil
	}

	if check.Poll >= v.maxPolls {
		result = v.orchestrator.Abandon(ctx, result, check.Poll, check.PendingFor(time.Now().UTC()))
		v.storeResult(ctx, result)
		return result, nil
	}

	if result.Status == model.StatusPending {
		v.storeResult(ctx, result)
	} else {
		logrus.WithFields(fields).Warnf("status check failed, polling again: %s", result.Reason)
	}

	if v.scheduler == nil {
		return result, nil
	}
	if err := v.scheduler.ScheduleStatusCheck(ctx, check.Next()); err != nil {
		logrus.WithFields(fields).Errorf("failed to schedule next status check: %v", err)
		return result, err
	}
	return result, nil
}
