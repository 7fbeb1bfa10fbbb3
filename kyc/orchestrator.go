package kyc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rentbase/idverify/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("idverify.kyc")

const defaultCallTimeout = 15 * time.Second

// Options configures an Orchestrator. Zero values fall back to defaults.
type Options struct {
	DefaultProvider string
	Thresholds      Thresholds
	Retry           RetryPolicy
	CallTimeout     time.Duration
	Claims          ClaimStore
	Metrics         *Metrics
}

// Orchestrator runs a verification request through a provider and turns the
// provider's answer into a verdict.
type Orchestrator struct {
	registry        *Registry
	matcher         *NameMatcher
	retry           RetryPolicy
	callTimeout     time.Duration
	defaultProvider string
	claims          ClaimStore
	metrics         *Metrics
	now             func() time.Time
}

func NewOrchestrator(registry *Registry, opts Options) (*Orchestrator, error) {
	if registry == nil {
		return nil, NewConfigurationError("", "a provider registry is required", nil)
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	matcher, err := NewNameMatcher(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Claims == nil {
		opts.Claims = NewMemoryClaimStore(24 * time.Hour)
	}

	return &Orchestrator{
		registry:        registry,
		matcher:         matcher,
		retry:           opts.Retry,
		callTimeout:     opts.CallTimeout,
		defaultProvider: opts.DefaultProvider,
		claims:          opts.Claims,
		metrics:         opts.Metrics,
		now:             time.Now,
	}, nil
}

// Registry returns the registry the orchestrator resolves providers from.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// DefaultProvider is the provider used when a request names none.
func (o *Orchestrator) DefaultProvider() string {
	return o.defaultProvider
}

// Verify checks a claimed identity against its provider. It never returns an
// error: every failure is reported as a FAILED result carrying its ErrorKind.
func (o *Orchestrator) Verify(ctx context.Context, req model.VerificationRequest) model.VerificationResult {
	providerName := req.Provider
	if providerName == "" {
		providerName = o.defaultProvider
	}

	ctx, span := tracer.Start(ctx, "Verifying identity document", trace.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("document_type", string(req.DocumentType)),
	))
	defer span.End()

	result := model.VerificationResult{
		ProviderName: providerName,
		DocumentType: req.DocumentType,
	}

	if err := req.Validate(); err != nil {
		return o.finish(ctx, span, o.failed(ctx, result, 0, NewValidationError("verify", err.Error(), err)))
	}
	if providerName == "" {
		return o.finish(ctx, span, o.failed(ctx, result, 0, NewConfigurationError("", "no provider requested and no default provider configured", nil)))
	}

	provider, err := o.registry.Get(providerName)
	if err != nil {
		return o.finish(ctx, span, o.failed(ctx, result, 0, err))
	}

	op, dispatch := o.dispatch(provider, req)
	answer, attempts, err := o.call(ctx, provider, op, dispatch)
	if err != nil {
		return o.finish(ctx, span, o.failed(ctx, result, attempts, err))
	}

	result.Attempts = attempts
	claim := req.Claim()
	if answer.Status == model.LookupPending && !claim.IsEmpty() {
		if err := o.claims.Save(ctx, providerName, answer.ProviderReferenceID, claim); err != nil {
			logrus.WithFields(logrus.Fields{
				"provider":  providerName,
				"reference": answer.ProviderReferenceID,
			}).Warnf("failed to remember claimed names for pending verification: %v", err)
		}
	}
	return o.finish(ctx, span, o.interpret(result, answer, claim, true))
}

// CheckStatus re-asks the provider about an earlier PENDING verification and
// matches the outcome against the names claimed at the time.
func (o *Orchestrator) CheckStatus(ctx context.Context, providerName, reference string) model.VerificationResult {
	if providerName == "" {
		providerName = o.defaultProvider
	}

	ctx, span := tracer.Start(ctx, "Checking verification status", trace.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("reference", reference),
	))
	defer span.End()

	result := model.VerificationResult{
		ProviderName:        providerName,
		ProviderReferenceID: reference,
	}

	if strings.TrimSpace(reference) == "" {
		return o.finish(ctx, span, o.failed(ctx, result, 0, NewValidationError("check_status", "provider reference is required", nil)))
	}
	if providerName == "" {
		return o.finish(ctx, span, o.failed(ctx, result, 0, NewConfigurationError("", "no provider requested and no default provider configured", nil)))
	}

	provider, err := o.registry.Get(providerName)
	if err != nil {
		return o.finish(ctx, span, o.failed(ctx, result, 0, err))
	}

	answer, attempts, err := o.call(ctx, provider, "check_status", func(ctx context.Context) (*model.ProviderAnswer, error) {
		return provider.CheckStatus(ctx, reference)
	})
	if err != nil {
		return o.finish(ctx, span, o.failed(ctx, result, attempts, err))
	}
	result.Attempts = attempts
	if answer.ProviderReferenceID == "" {
		answer.ProviderReferenceID = reference
	}

	claim, found, err := o.claims.Load(ctx, providerName, reference)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"provider":  providerName,
			"reference": reference,
		}).Warnf("failed to load claimed names for pending verification: %v", err)
	}
	if !found {
		claim = model.NameClaim{}
	}

	res := o.interpret(result, answer, claim, found)
	if found && !IsOpen(res) {
		if err := o.claims.Delete(ctx, providerName, reference); err != nil {
			logrus.Warnf("failed to drop claimed names for %s/%s: %v", providerName, reference, err)
		}
	}
	o.metrics.IncrementPoll(providerName, string(res.Status))
	return o.finish(ctx, span, res)
}

// Abandon gives up on a reference that stayed PENDING for polls status checks
// spread over pendingFor. The result becomes FAILED with PROVIDER_TIMEOUT and
// the claimed names are dropped. A zero pendingFor is left out of the reason.
func (o *Orchestrator) Abandon(ctx context.Context, result model.VerificationResult, polls int, pendingFor time.Duration) model.VerificationResult {
	ctx, span := tracer.Start(ctx, "Abandoning pending verification", trace.WithAttributes(
		attribute.String("provider", result.ProviderName),
		attribute.String("reference", result.ProviderReferenceID),
		attribute.Int("polls", polls),
		attribute.String("pending_for", pendingFor.String()),
	))
	defer span.End()

	if err := o.claims.Delete(ctx, result.ProviderName, result.ProviderReferenceID); err != nil {
		logrus.Warnf("failed to drop claimed names for %s/%s: %v", result.ProviderName, result.ProviderReferenceID, err)
	}

	result.Status = model.StatusFailed
	result.Confidence = nil
	result.Record = nil
	result.ErrorKind = model.ErrorTimeout
	result.Reason = fmt.Sprintf("verification still pending after %d polls", polls)
	if pendingFor = pendingFor.Round(time.Second); pendingFor > 0 {
		result.Reason += fmt.Sprintf(" over %s", pendingFor)
	}
	result.CheckedAt = o.now()
	return o.finish(ctx, span, result)
}

func (o *Orchestrator) dispatch(p Provider, req model.VerificationRequest) (string, func(context.Context) (*model.ProviderAnswer, error)) {
	switch req.DocumentType {
	case model.DocumentNIN:
		return "verify_nin", func(ctx context.Context) (*model.ProviderAnswer, error) {
			return p.VerifyNIN(ctx, req.DocumentNumber, req.ClaimedFirstName, req.ClaimedLastName, req.DateOfBirth)
		}
	case model.DocumentPassport:
		return "verify_passport", func(ctx context.Context) (*model.ProviderAnswer, error) {
			return p.VerifyPassport(ctx, req.DocumentNumber, req.ClaimedFirstName, req.ClaimedLastName)
		}
	case model.DocumentDriversLicense:
		return "verify_drivers_license", func(ctx context.Context) (*model.ProviderAnswer, error) {
			return p.VerifyDriversLicense(ctx, req.DocumentNumber, req.ClaimedFirstName, req.ClaimedLastName)
		}
	case model.DocumentVotersCard:
		return "verify_voters_card", func(ctx context.Context) (*model.ProviderAnswer, error) {
			return p.VerifyVotersCard(ctx, req.DocumentNumber, req.ClaimedFirstName, req.ClaimedLastName)
		}
	default:
		return "verify_document", func(ctx context.Context) (*model.ProviderAnswer, error) {
			return p.VerifyDocument(ctx, string(req.DocumentType), req.FileURL, req.MetaData)
		}
	}
}

// call runs fn under the per-call timeout, retrying transient failures.
func (o *Orchestrator) call(ctx context.Context, p Provider, op string, fn func(context.Context) (*model.ProviderAnswer, error)) (*model.ProviderAnswer, int, error) {
	name := p.Name()
	var answer *model.ProviderAnswer

	attempts, err := o.retry.retry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()

		start := time.Now()
		a, err := fn(callCtx)
		o.metrics.ObserveCallLatency(name, op, time.Since(start))

		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && KindOf(err) != model.ErrorTimeout {
				return NewTimeoutError(name, op, err)
			}
			return err
		}
		if a == nil {
			return NewProviderError(name, op, "provider returned no answer", false, nil)
		}
		if err := a.Validate(); err != nil {
			return NewProviderError(name, op, "malformed provider answer", false, err)
		}
		answer = a
		return nil
	}, func(err error, wait time.Duration) {
		kind := KindOf(err)
		o.metrics.IncrementRetry(name, string(kind))
		logrus.WithFields(logrus.Fields{
			"provider": name,
			"op":       op,
			"kind":     kind,
			"wait":     wait,
		}).Warnf("provider call failed, retrying: %v", err)
	})
	return answer, attempts, err
}

// interpret applies the matching policy to a provider answer. claimKnown is
// false when a status check found no remembered claim for the reference.
func (o *Orchestrator) interpret(result model.VerificationResult, answer *model.ProviderAnswer, claim model.NameClaim, claimKnown bool) model.VerificationResult {
	result.ProviderReferenceID = answer.ProviderReferenceID
	result.CheckedAt = o.now()

	switch answer.Status {
	case model.LookupNoRecord:
		result.Status = model.StatusRejected
		result.Reason = "provider holds no record for this document"
	case model.LookupPending:
		result.Status = model.StatusPending
		result.Reason = "provider is still processing the verification"
	case model.LookupFound:
		result.Record = answer.Record
		if result.ProviderReferenceID == "" && answer.Record != nil {
			result.ProviderReferenceID = answer.Record.ProviderReferenceID
		}
		switch {
		case !claimKnown || claim.IsEmpty():
			result.Status = model.StatusNeedsReview
			result.Reason = "no claimed names available to match against"
		case !answer.Record.HasName():
			result.Status = model.StatusNeedsReview
			result.Reason = "provider returned no names to match against"
		default:
			confidence := o.matcher.Confidence(claim.FirstName, claim.LastName, answer.Record.ReturnedFirstName, answer.Record.ReturnedLastName)
			o.metrics.ObserveConfidence(confidence)
			result.Confidence = &confidence
			result.Status, result.Reason = o.matcher.Decide(confidence)
		}
	}
	return result
}

func (o *Orchestrator) failed(ctx context.Context, result model.VerificationResult, attempts int, err error) model.VerificationResult {
	kind := KindOf(err)
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		kind = model.ErrorCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = model.ErrorTimeout
	}

	result.Status = model.StatusFailed
	result.Confidence = nil
	result.ErrorKind = kind
	result.Reason = err.Error()
	result.Attempts = attempts
	result.CheckedAt = o.now()
	return result
}

func (o *Orchestrator) finish(_ context.Context, span trace.Span, result model.VerificationResult) model.VerificationResult {
	o.metrics.IncrementOutcome(result.ProviderName, string(result.DocumentType), string(result.Status))

	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("attempts", result.Attempts),
	)
	if result.Confidence != nil {
		span.SetAttributes(attribute.Int("confidence", *result.Confidence))
	}

	fields := logrus.Fields{
		"provider":      result.ProviderName,
		"document_type": result.DocumentType,
		"status":        result.Status,
		"attempts":      result.Attempts,
		"reference":     result.ProviderReferenceID,
	}
	if result.Status == model.StatusFailed {
		span.SetStatus(codes.Error, string(result.ErrorKind))
		span.RecordError(fmt.Errorf("%s: %s", result.ErrorKind, result.Reason))
		fields["error_kind"] = result.ErrorKind
		logrus.WithFields(fields).Errorf("verification failed: %s", result.Reason)
		return result
	}
	logrus.WithFields(fields).Info(result.Reason)
	return result
}
