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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"

	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/kyc/adapters"
	"github.com/rentbase/idverify/model"
)

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleStatusCheck(ctx context.Context, check StatusCheck) error {
	return m.Called(ctx, check).Error(0)
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Sandbox: config.SandboxConfig{Enabled: true},
		Verification: config.VerificationConfig{
			DefaultProvider:   adapters.SandboxName,
			AcceptThreshold:   90,
			ReviewThreshold:   70,
			MaxRetries:        ptr.Int(1),
			InitialIntervalMs: 1,
			MaxIntervalMs:     2,
			CallTimeoutSec:    2,
			PollIntervalSec:   1,
			MaxPolls:          3,
			ClaimTTLMinutes:   60,
		},
	}
}

// newTestService wires the service against miniredis and swaps in sb as the sandbox provider.
func newTestService(t *testing.T, scheduler StatusScheduler, sb *adapters.Sandbox) (*IDVerify, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	v, err := NewIDVerify(testConfig(), client, scheduler, nil)
	require.NoError(t, err)
	if sb != nil {
		v.Orchestrator().Registry().Register(adapters.SandboxName, func() (kyc.Provider, error) { return sb, nil })
	}
	return v, mr
}

func documentRequest() model.VerificationRequest {
	return model.VerificationRequest{
		Provider:         adapters.SandboxName,
		DocumentType:     model.DocumentOther,
		FileURL:          "https://files.example.com/utility-bill.pdf",
		ClaimedFirstName: "Ada",
		ClaimedLastName:  "Lovelace",
		MetaData:         map[string]interface{}{"first_name": "ADA", "last_name": "Lovelace"},
	}
}

func TestBuildRegistry(t *testing.T) {
	cnf := testConfig()
	cnf.Dojah = config.DojahConfig{AppID: "app", SecretKey: "secret"}

	registry, err := BuildRegistry(cnf)
	require.NoError(t, err)
	assert.Equal(t, []string{"dojah", "sandbox"}, registry.ListAvailable())
}

func TestBuildRegistryMissingProvidersFile(t *testing.T) {
	cnf := testConfig()
	cnf.Verification.ProvidersConfigPath = "does-not-exist.yaml"

	_, err := BuildRegistry(cnf)
	assert.Error(t, err)
}

func TestVerifyStoresSynchronousResult(t *testing.T) {
	v, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	result := v.Verify(ctx, model.VerificationRequest{
		DocumentType:     model.DocumentPassport,
		DocumentNumber:   "A00000001",
		ClaimedFirstName: "Grace",
		ClaimedLastName:  "Hopper",
	})
	require.Equal(t, model.StatusVerified, result.Status)
	require.NotEmpty(t, result.ProviderReferenceID)

	stored, err := v.LastResult(ctx, "", result.ProviderReferenceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, stored.Status)
	require.NotNil(t, stored.Confidence)
	assert.Equal(t, 100, *stored.Confidence)
}

func TestLastResultNotFound(t *testing.T) {
	v, _ := newTestService(t, nil, nil)

	_, err := v.LastResult(context.Background(), adapters.SandboxName, "unknown")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestVerifyPendingSchedulesStatusCheck(t *testing.T) {
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleStatusCheck", mock.Anything, mock.MatchedBy(func(c StatusCheck) bool {
		return c.Provider == adapters.SandboxName && c.Poll == 1 && c.FirstPollAt != nil
	})).Return(nil).Once()
	v, mr := newTestService(t, scheduler, nil)

	result := v.Verify(context.Background(), documentRequest())

	require.Equal(t, model.StatusPending, result.Status)
	assert.True(t, mr.Exists(kyc.ClaimKey(adapters.SandboxName, result.ProviderReferenceID)))
	scheduler.AssertExpectations(t)
}

func TestVerifyPendingSurvivesSchedulerFailure(t *testing.T) {
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleStatusCheck", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	v, _ := newTestService(t, scheduler, nil)

	result := v.Verify(context.Background(), documentRequest())
	assert.Equal(t, model.StatusPending, result.Status)
}

func TestCheckStatusUsesSharedClaims(t *testing.T) {
	sb := adapters.NewSandbox(nil)
	v, _ := newTestService(t, nil, sb)
	ctx := context.Background()

	pending := v.Verify(ctx, documentRequest())
	require.Equal(t, model.StatusPending, pending.Status)

	// a second service on the same redis, as a worker process would be
	other, err := NewIDVerify(testConfig(), v.redis, nil, nil)
	require.NoError(t, err)
	other.Orchestrator().Registry().Register(adapters.SandboxName, func() (kyc.Provider, error) { return sb, nil })

	done := other.CheckStatus(ctx, adapters.SandboxName, pending.ProviderReferenceID)
	assert.Equal(t, model.StatusVerified, done.Status)

	stored, err := v.LastResult(ctx, adapters.SandboxName, pending.ProviderReferenceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, stored.Status)
}

func TestCheckStatusValidationErrorIsNotStored(t *testing.T) {
	v, _ := newTestService(t, nil, nil)

	result := v.CheckStatus(context.Background(), adapters.SandboxName, " ")
	assert.Equal(t, model.ErrorValidation, result.ErrorKind)
}

func TestPollStatusReschedulesWhilePending(t *testing.T) {
	sb := adapters.NewSandbox(nil)
	sb.PendingChecks = 5
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleStatusCheck", mock.Anything, mock.Anything).Return(nil)
	v, _ := newTestService(t, scheduler, sb)
	ctx := context.Background()

	pending := v.Verify(ctx, documentRequest())
	require.Equal(t, model.StatusPending, pending.Status)

	check := NewStatusCheck(adapters.SandboxName, pending.ProviderReferenceID)
	result, err := v.PollStatus(ctx, check)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, result.Status)
	scheduler.AssertCalled(t, "ScheduleStatusCheck", mock.Anything, check.Next())
}

func TestPollStatusAbandonsAfterMaxPolls(t *testing.T) {
	sb := adapters.NewSandbox(nil)
	sb.PendingChecks = 10
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleStatusCheck", mock.Anything, mock.Anything).Return(nil)
	v, mr := newTestService(t, scheduler, sb)
	ctx := context.Background()

	pending := v.Verify(ctx, documentRequest())
	check := NewStatusCheck(adapters.SandboxName, pending.ProviderReferenceID)
	check.Poll = 3
	check.FirstPollAt = ptr.Time(time.Now().UTC().Add(-90 * time.Minute))

	result, err := v.PollStatus(ctx, check)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, model.ErrorTimeout, result.ErrorKind)
	assert.Equal(t, "verification still pending after 3 polls over 1h30m0s", result.Reason)

	stored, err := v.LastResult(ctx, adapters.SandboxName, pending.ProviderReferenceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.False(t, mr.Exists(kyc.ClaimKey(adapters.SandboxName, pending.ProviderReferenceID)))
	// only the initial Verify scheduled anything
	scheduler.AssertNumberOfCalls(t, "ScheduleStatusCheck", 1)
}

func TestPollStatusStoresTerminalResult(t *testing.T) {
	sb := adapters.NewSandbox(nil)
	v, mr := newTestService(t, nil, sb)
	ctx := context.Background()

	pending := v.Verify(ctx, documentRequest())
	result, err := v.PollStatus(ctx, NewStatusCheck(adapters.SandboxName, pending.ProviderReferenceID))
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, result.Status)
	assert.False(t, mr.Exists("idverify:lock:sandbox:"+pending.ProviderReferenceID))
}

func TestPollStatusRetriesTransientFailure(t *testing.T) {
	sb := adapters.NewSandbox(nil)
	scheduler := &mockScheduler{}
	scheduler.On("ScheduleStatusCheck", mock.Anything, mock.Anything).Return(nil)
	v, _ := newTestService(t, scheduler, sb)
	ctx := context.Background()

	pending := v.Verify(ctx, documentRequest())
	sb.FailWith = kyc.NewNetworkError(adapters.SandboxName, "check_status", errors.New("connection reset"))
	sb.FailTimes = 2

	result, err := v.PollStatus(ctx, NewStatusCheck(adapters.SandboxName, pending.ProviderReferenceID))
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, model.ErrorNetwork, result.ErrorKind)

	// the stored result is still the pending one
	stored, err := v.LastResult(ctx, adapters.SandboxName, pending.ProviderReferenceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	scheduler.AssertNumberOfCalls(t, "ScheduleStatusCheck", 2)
}

func TestPollStatusSkipsLockedReference(t *testing.T) {
	v, mr := newTestService(t, nil, nil)
	require.NoError(t, mr.Set("idverify:lock:sandbox:doc_1", "other-worker"))
	mr.SetTTL("idverify:lock:sandbox:doc_1", time.Minute)

	_, err := v.PollStatus(context.Background(), NewStatusCheck(adapters.SandboxName, "doc_1"))
	assert.ErrorIs(t, err, ErrPollInProgress)
}
