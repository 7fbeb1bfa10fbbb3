package kyc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rentbase/idverify/model"
	"github.com/sirupsen/logrus"
)

// Poller waits for pending verifications to resolve by re-checking their status
// on an exponential schedule.
type Poller struct {
	orchestrator *Orchestrator
	interval     time.Duration
	maxInterval  time.Duration
}

func NewPoller(orchestrator *Orchestrator, interval, maxInterval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxInterval < interval {
		maxInterval = interval * 8
	}
	return &Poller{
		orchestrator: orchestrator,
		interval:     interval,
		maxInterval:  maxInterval,
	}
}

// IsOpen reports whether another status check could change result. PENDING
// answers and transient failures stay open.
func IsOpen(result model.VerificationResult) bool {
	if result.Status == model.StatusPending {
		return true
	}
	return result.Status == model.StatusFailed &&
		(result.ErrorKind == model.ErrorNetwork || result.ErrorKind == model.ErrorTimeout)
}

// Await polls CheckStatus until the result is no longer open or ctx ends.
// When ctx ends first the last open result is returned as FAILED with the
// kind matching how ctx ended.
func (p *Poller) Await(ctx context.Context, providerName, reference string) model.VerificationResult {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = p.maxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	polls := 0
	for {
		polls++
		result := p.orchestrator.CheckStatus(ctx, providerName, reference)
		if !IsOpen(result) {
			logrus.Infof("Poller: %s/%s resolved to %s after %d polls", providerName, reference, result.Status, polls)
			return result
		}

		wait := b.NextBackOff()
		if result.Status == model.StatusPending {
			logrus.Debugf("Poller: %s/%s still pending, next check in %v", providerName, reference, wait)
		} else {
			logrus.Warnf("Poller: %s/%s check failed (%s), next check in %v", providerName, reference, result.Reason, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p.orchestrator.failed(ctx, result, result.Attempts, fmt.Errorf("verification still pending after %d polls: %w", polls, ctx.Err()))
		case <-timer.C:
		}
	}
}
