package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
)

const SandboxName = "sandbox"

// SandboxIdentity is a fixture record the sandbox answers with.
type SandboxIdentity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DefaultSandboxFixtures are the document numbers the sandbox knows out of the box.
func DefaultSandboxFixtures() map[string]SandboxIdentity {
	return map[string]SandboxIdentity{
		"70123456789": {FirstName: "Ada", LastName: "Lovelace"},
		"A00000001":   {FirstName: "Grace", LastName: "Hopper"},
		"DL000000001": {FirstName: "Alan", LastName: "Turing"},
		"VC000000001": {FirstName: "Katherine", LastName: "Johnson"},
	}
}

type sandboxDocument struct {
	identity SandboxIdentity
	checks   int
}

// Sandbox is an in-process provider with deterministic answers, used for local
// development and tests. Unknown numbers answer NO_RECORD. Documents answer
// PENDING and resolve after PendingChecks status checks.
type Sandbox struct {
	Delay         time.Duration
	PendingChecks int
	// FailWith, when set, is returned by the next FailTimes calls.
	FailWith  error
	FailTimes int

	mu        sync.Mutex
	fixtures  map[string]SandboxIdentity
	documents map[string]*sandboxDocument
	calls     int
}

func NewSandbox(fixtures map[string]SandboxIdentity) *Sandbox {
	if fixtures == nil {
		fixtures = DefaultSandboxFixtures()
	}
	return &Sandbox{
		PendingChecks: 1,
		fixtures:      fixtures,
		documents:     make(map[string]*sandboxDocument),
	}
}

// SandboxConstructor registers a fresh sandbox with the default fixtures.
func SandboxConstructor() kyc.Constructor {
	return func() (kyc.Provider, error) {
		return NewSandbox(nil), nil
	}
}

func (s *Sandbox) Name() string {
	return SandboxName
}

// Calls returns how many provider operations have been invoked.
func (s *Sandbox) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// AddFixture registers or replaces the identity behind a document number.
func (s *Sandbox) AddFixture(documentNumber string, identity SandboxIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[documentNumber] = identity
}

func (s *Sandbox) VerifyNIN(ctx context.Context, documentNumber, firstName, lastName, dob string) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("verify_nin", map[string]string{"document_number": documentNumber, "dob": dob}); err != nil {
		return nil, err
	}
	return s.lookup(ctx, documentNumber)
}

func (s *Sandbox) VerifyPassport(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("verify_passport", map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}
	return s.lookup(ctx, documentNumber)
}

func (s *Sandbox) VerifyDriversLicense(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("verify_drivers_license", map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}
	return s.lookup(ctx, documentNumber)
}

func (s *Sandbox) VerifyVotersCard(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("verify_voters_card", map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}
	return s.lookup(ctx, documentNumber)
}

// VerifyDocument accepts the file and answers PENDING. The names the document
// resolves to are read from the first_name and last_name metadata keys.
func (s *Sandbox) VerifyDocument(ctx context.Context, documentType, fileURL string, metadata map[string]interface{}) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("verify_document", map[string]string{"file_url": fileURL}); err != nil {
		return nil, err
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var identity SandboxIdentity
	if v, ok := metadata["first_name"].(string); ok {
		identity.FirstName = v
	}
	if v, ok := metadata["last_name"].(string); ok {
		identity.LastName = v
	}

	ref := "doc_" + uuid.New().String()
	s.mu.Lock()
	s.documents[ref] = &sandboxDocument{identity: identity}
	s.mu.Unlock()
	return kyc.Pending(ref), nil
}

func (s *Sandbox) CheckStatus(ctx context.Context, providerReferenceID string) (*model.ProviderAnswer, error) {
	if err := kyc.RequireFields("check_status", map[string]string{"provider_reference_id": providerReferenceID}); err != nil {
		return nil, err
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[providerReferenceID]
	if !ok {
		return kyc.NoRecord(providerReferenceID), nil
	}
	doc.checks++
	if doc.checks < s.PendingChecks {
		return kyc.Pending(providerReferenceID), nil
	}
	raw, _ := json.Marshal(doc.identity)
	return kyc.Found(doc.identity.FirstName, doc.identity.LastName, providerReferenceID, raw), nil
}

func (s *Sandbox) lookup(ctx context.Context, documentNumber string) (*model.ProviderAnswer, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	identity, ok := s.fixtures[documentNumber]
	s.mu.Unlock()

	ref := "lookup_" + uuid.New().String()
	if !ok {
		return kyc.NoRecord(ref), nil
	}
	raw, _ := json.Marshal(identity)
	return kyc.Found(identity.FirstName, identity.LastName, ref, raw), nil
}

// begin counts the call, applies the configured delay and any injected failure.
func (s *Sandbox) begin(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	var injected error
	if s.FailWith != nil && s.FailTimes > 0 {
		injected = s.FailWith
		s.FailTimes--
	}
	delay := s.Delay
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return kyc.NewTimeoutError(SandboxName, "sandbox", ctx.Err())
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return injected
}
