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
	"time"

	"github.com/rentbase/idverify/internal/cache"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
)

// RedisClaimStore keeps claimed names for pending references in Redis so the
// API and the status workers see the same claims.
type RedisClaimStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewRedisClaimStore(c cache.Cache, ttl time.Duration) *RedisClaimStore {
	return &RedisClaimStore{cache: c, ttl: ttl}
}

func (s *RedisClaimStore) Save(ctx context.Context, provider, reference string, claim model.NameClaim) error {
	return s.cache.Set(ctx, kyc.ClaimKey(provider, reference), claim, s.ttl)
}

func (s *RedisClaimStore) Load(ctx context.Context, provider, reference string) (model.NameClaim, bool, error) {
	var claim model.NameClaim
	found, err := s.cache.Get(ctx, kyc.ClaimKey(provider, reference), &claim)
	if err != nil || !found {
		return model.NameClaim{}, false, err
	}
	return claim, true, nil
}

func (s *RedisClaimStore) Delete(ctx context.Context, provider, reference string) error {
	return s.cache.Delete(ctx, kyc.ClaimKey(provider, reference))
}
