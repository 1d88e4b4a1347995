// Copyright 2026 Lexfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package coref

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResolutionCacheTTL is the default TTL for cached resolutions.
const ResolutionCacheTTL = 2 * time.Minute

// Resolver resolves a document into coreference chains.
type Resolver interface {
	ResolveDocument(ctx context.Context, doc Document) (*Result, error)
}

// CachedResolver wraps a resolver with result caching. Resolution is
// deterministic for a fixed model and options, so identical documents
// always reuse the cached result while it lives.
type CachedResolver struct {
	resolver Resolver
	cache    *ttlcache.Cache[string, *Result]
	sfGroup  *singleflight.Group
	logger   *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewCachedResolver wraps a resolver with a TTL result cache.
func NewCachedResolver(resolver Resolver, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = ResolutionCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Result](ttl),
	)
	go cache.Start()

	return &CachedResolver{
		resolver: resolver,
		cache:    cache,
		sfGroup:  &singleflight.Group{},
		logger:   logger.Named("cache"),
	}
}

// ResolveDocument returns a cached result when the document was seen
// recently, deduplicating concurrent identical requests.
func (c *CachedResolver) ResolveDocument(ctx context.Context, doc Document) (*Result, error) {
	key := c.cacheKey(doc)

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		RecordCacheHit("resolution")
		c.logger.Debug("Resolution cache hit",
			zap.Int("tokens", doc.NumTokens()),
			zap.Int("chains", len(item.Value().Chains)))
		return item.Value(), nil
	}

	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)
		RecordCacheMiss("resolution")

		start := time.Now()
		res, err := c.resolver.ResolveDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, res, ttlcache.DefaultTTL)

		c.logger.Debug("Resolution cached",
			zap.Int("tokens", doc.NumTokens()),
			zap.Int("chains", len(res.Chains)),
			zap.Duration("duration", time.Since(start)))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.sfHits.Add(1)
	}
	return result.(*Result), nil
}

// cacheKey hashes the document's sentence structure and tokens.
func (c *CachedResolver) cacheKey(doc Document) string {
	h := xxhash.New()
	for _, sentence := range doc.Sentences {
		for _, tok := range sentence {
			_, _ = h.WriteString(tok)
			_, _ = h.WriteString("|")
		}
		_, _ = h.WriteString("||")
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// Stats returns cache statistics.
func (c *CachedResolver) Stats() CacheStats {
	return CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		SingleflightHits: c.sfHits.Load(),
		Items:            c.cache.Len(),
	}
}

// CacheStats holds resolution cache statistics.
type CacheStats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Items            int    `json:"items"`
}

// Close stops the cache.
func (c *CachedResolver) Close() {
	c.cache.Stop()
}
