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

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/internal/cache"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/kyc/adapters"
	"github.com/rentbase/idverify/model"
)

var tracer = otel.Tracer("idverify")

// ErrResultNotFound is returned by LastResult when nothing is stored for a reference.
var ErrResultNotFound = errors.New("no verification result stored for reference")

// StatusScheduler schedules background status checks of pending references.
type StatusScheduler interface {
	ScheduleStatusCheck(ctx context.Context, check StatusCheck) error
}

// IDVerify is the service shell around the orchestrator. It shares claimed
// names and last results through Redis and hands pending references to the
// status queue.
type IDVerify struct {
	orchestrator *kyc.Orchestrator
	scheduler    StatusScheduler
	redis        redis.UniversalClient
	results      cache.Cache
	resultTTL    time.Duration
	maxPolls     int
	lockTTL      time.Duration
}

// BuildRegistry registers every provider the configuration enables.
func BuildRegistry(cfg *config.Configuration) (*kyc.Registry, error) {
	registry := kyc.NewRegistry()

	if cfg.Dojah.Enabled() {
		registry.Register(adapters.DojahName, adapters.DojahConstructor(adapters.DojahConfig{
			AppID:     cfg.Dojah.AppID,
			SecretKey: cfg.Dojah.SecretKey,
			BaseURL:   cfg.Dojah.BaseURL,
		}))
	}
	if cfg.Sandbox.Enabled {
		registry.Register(adapters.SandboxName, adapters.SandboxConstructor())
	}
	if path := cfg.Verification.ProvidersConfigPath; path != "" {
		if _, err := kyc.RegisterProvidersFromConfig(registry, path); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// NewOrchestrator builds an orchestrator over the configured providers.
// claims may be nil for a process-local claim store.
func NewOrchestrator(cfg *config.Configuration, claims kyc.ClaimStore, metrics *kyc.Metrics) (*kyc.Orchestrator, error) {
	registry, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	v := cfg.Verification
	return kyc.NewOrchestrator(registry, kyc.Options{
		DefaultProvider: v.DefaultProvider,
		Thresholds:      kyc.Thresholds{Accept: v.AcceptThreshold, Review: v.ReviewThreshold},
		Retry: kyc.RetryPolicy{
			MaxRetries:      maxRetries(v),
			InitialInterval: v.InitialInterval(),
			MaxInterval:     v.MaxInterval(),
		},
		CallTimeout: v.CallTimeout(),
		Claims:      claims,
		Metrics:     metrics,
	})
}

// NewIDVerify wires the engine from configuration. A nil scheduler disables
// background polling of pending references.
func NewIDVerify(cfg *config.Configuration, client redis.UniversalClient, scheduler StatusScheduler, metrics *kyc.Metrics) (*IDVerify, error) {
	// claims and results are written by the API and read by workers, so no local tier
	shared := cache.NewCache(client, cache.Options{})
	v := cfg.Verification

	orchestrator, err := NewOrchestrator(cfg, NewRedisClaimStore(shared, v.ClaimTTL()), metrics)
	if err != nil {
		return nil, err
	}

	return &IDVerify{
		orchestrator: orchestrator,
		scheduler:    scheduler,
		redis:        client,
		results:      shared,
		resultTTL:    v.ClaimTTL(),
		maxPolls:     v.MaxPolls,
		lockTTL:      lockTTL(v),
	}, nil
}

func maxRetries(v config.VerificationConfig) int {
	if v.MaxRetries == nil {
		return kyc.DefaultRetryPolicy().MaxRetries
	}
	return *v.MaxRetries
}

// lockTTL covers one status check including all its retries.
func lockTTL(v config.VerificationConfig) time.Duration {
	return time.Duration(maxRetries(v)+1)*(v.CallTimeout()+v.MaxInterval()) + time.Second
}

func (v *IDVerify) Orchestrator() *kyc.Orchestrator {
	return v.orchestrator
}

// Providers lists the registered provider names.
func (v *IDVerify) Providers() []string {
	return v.orchestrator.Registry().ListAvailable()
}

func (v *IDVerify) DefaultProvider() string {
	return v.orchestrator.DefaultProvider()
}

// Verify runs req and remembers the result under its provider reference.
// PENDING results are handed to the status queue.
func (v *IDVerify) Verify(ctx context.Context, req model.VerificationRequest) model.VerificationResult {
	ctx, span := tracer.Start(ctx, "Verify")
	defer span.End()

	result := v.orchestrator.Verify(ctx, req)
	v.storeResult(ctx, result)

	if result.Status == model.StatusPending && v.scheduler != nil {
		check := NewStatusCheck(result.ProviderName, result.ProviderReferenceID)
		if err := v.scheduler.ScheduleStatusCheck(ctx, check); err != nil {
			logrus.WithFields(logrus.Fields{
				"provider":  result.ProviderName,
				"reference": result.ProviderReferenceID,
			}).Errorf("failed to schedule status check: %v", err)
		}
	}
	return result
}

// CheckStatus asks the provider about reference right away and stores the answer.
func (v *IDVerify) CheckStatus(ctx context.Context, providerName, reference string) model.VerificationResult {
	ctx, span := tracer.Start(ctx, "CheckStatus")
	defer span.End()

	result := v.orchestrator.CheckStatus(ctx, providerName, reference)
	if result.ErrorKind != model.ErrorValidation {
		v.storeResult(ctx, result)
	}
	return result
}

// LastResult returns the most recent result stored for reference without
// calling the provider.
func (v *IDVerify) LastResult(ctx context.Context, providerName, reference string) (*model.VerificationResult, error) {
	if providerName == "" {
		providerName = v.DefaultProvider()
	}
	var result model.VerificationResult
	found, err := v.results.Get(ctx, resultKey(providerName, reference), &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrResultNotFound
	}
	return &result, nil
}

func (v *IDVerify) storeResult(ctx context.Context, result model.VerificationResult) {
	if result.ProviderName == "" || result.ProviderReferenceID == "" {
		return
	}
	if err := v.results.Set(ctx, resultKey(result.ProviderName, result.ProviderReferenceID), result, v.resultTTL); err != nil {
		logrus.WithFields(logrus.Fields{
			"provider":  result.ProviderName,
			"reference": result.ProviderReferenceID,
		}).Warnf("failed to store verification result: %v", err)
	}
}

func resultKey(provider, reference string) string {
	return "result:" + provider + ":" + reference
}
