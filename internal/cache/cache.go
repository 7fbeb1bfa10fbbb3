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
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Cache stores short-lived operational state such as claimed names for
// pending verifications and the last result seen for a reference.
type Cache interface {
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the value under key into data. It reports false on a miss,
	// which is not an error.
	Get(ctx context.Context, key string, data interface{}) (bool, error)

	Delete(ctx context.Context, key string) error
}

// Options control the in-process tier in front of Redis.
type Options struct {
	// LocalSize is the number of entries kept in process. Zero disables the
	// local tier, which suits values other processes overwrite.
	LocalSize int
	LocalTTL  time.Duration
}

// RedisCache implements Cache on Redis with an optional TinyLFU local tier.
type RedisCache struct {
	cache *cache.Cache
}

func NewCache(client redis.UniversalClient, opts Options) *RedisCache {
	cacheOpts := &cache.Options{Redis: client}
	if opts.LocalSize > 0 {
		ttl := opts.LocalTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		cacheOpts.LocalCache = cache.NewTinyLFU(opts.LocalSize, ttl)
	}
	return &RedisCache{cache: cache.New(cacheOpts)}
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
