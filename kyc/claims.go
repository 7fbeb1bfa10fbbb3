package kyc

import (
	"context"
	"sync"
	"time"

	"github.com/rentbase/idverify/model"
)

// ClaimStore remembers the names claimed for a pending provider reference so a
// later status check can match against them.
type ClaimStore interface {
	Save(ctx context.Context, provider, reference string, claim model.NameClaim) error
	Load(ctx context.Context, provider, reference string) (model.NameClaim, bool, error)
	Delete(ctx context.Context, provider, reference string) error
}

// ClaimKey is the key a claim is stored under.
func ClaimKey(provider, reference string) string {
	return "claim:" + provider + ":" + reference
}

type memoryClaim struct {
	claim     model.NameClaim
	expiresAt time.Time
}

// MemoryClaimStore is a process-local ClaimStore with per-entry expiry.
type MemoryClaimStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]memoryClaim
	now    func() time.Time
}

func NewMemoryClaimStore(ttl time.Duration) *MemoryClaimStore {
	return &MemoryClaimStore{
		ttl:    ttl,
		claims: make(map[string]memoryClaim),
		now:    time.Now,
	}
}

func (s *MemoryClaimStore) Save(_ context.Context, provider, reference string, claim model.NameClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	entry := memoryClaim{claim: claim}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.claims[ClaimKey(provider, reference)] = entry
	return nil
}

func (s *MemoryClaimStore) Load(_ context.Context, provider, reference string) (model.NameClaim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ClaimKey(provider, reference)
	entry, ok := s.claims[key]
	if !ok {
		return model.NameClaim{}, false, nil
	}
	if s.expired(entry) {
		delete(s.claims, key)
		return model.NameClaim{}, false, nil
	}
	return entry.claim, true, nil
}

func (s *MemoryClaimStore) Delete(_ context.Context, provider, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, ClaimKey(provider, reference))
	return nil
}

func (s *MemoryClaimStore) expired(entry memoryClaim) bool {
	return !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)
}

// evictExpired must be called with mu held.
func (s *MemoryClaimStore) evictExpired() {
	for key, entry := range s.claims {
		if s.expired(entry) {
			delete(s.claims, key)
		}
	}
}
