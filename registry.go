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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/bundle"
)

// DefaultKeepAlive is how long an unused bundle stays in memory.
const DefaultKeepAlive = 5 * time.Minute

// BundleInfo holds metadata about a discovered bundle (not loaded yet).
type BundleInfo struct {
	Name string
	Path string
}

// BundleRegistry discovers model bundles under a directory and loads
// them lazily with TTL-based unloading. A bundle directory is any
// subdirectory containing a manifest.json.
type BundleRegistry struct {
	bundlesDir string
	logger     *zap.Logger

	discovered map[string]*BundleInfo
	mu         sync.RWMutex

	cache *ttlcache.Cache[string, *bundle.Bundle]

	// Pinned bundles are never evicted.
	pinned   map[string]*bundle.Bundle
	pinnedMu sync.RWMutex

	keepAlive time.Duration
}

// BundleRegistryConfig configures the registry.
type BundleRegistryConfig struct {
	BundlesDir string

	// KeepAlive is how long to keep unused bundles loaded; 0 means
	// forever.
	KeepAlive time.Duration

	// MaxLoaded caps how many bundles stay in memory; 0 means
	// unlimited.
	MaxLoaded uint64
}

// NewBundleRegistry scans the bundles directory and creates a
// lazy-loading registry.
func NewBundleRegistry(config BundleRegistryConfig, logger *zap.Logger) (*BundleRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keepAlive := config.KeepAlive
	if keepAlive == 0 {
		keepAlive = ttlcache.NoTTL
	}

	registry := &BundleRegistry{
		bundlesDir: config.BundlesDir,
		logger:     logger.Named("bundles"),
		discovered: make(map[string]*BundleInfo),
		pinned:     make(map[string]*bundle.Bundle),
		keepAlive:  keepAlive,
	}

	cacheOpts := []ttlcache.Option[string, *bundle.Bundle]{
		ttlcache.WithTTL[string, *bundle.Bundle](keepAlive),
	}
	if config.MaxLoaded > 0 {
		cacheOpts = append(cacheOpts,
			ttlcache.WithCapacity[string, *bundle.Bundle](config.MaxLoaded))
	}
	registry.cache = ttlcache.New(cacheOpts...)
	go registry.cache.Start()

	if err := registry.discover(); err != nil {
		registry.cache.Stop()
		return nil, err
	}
	return registry, nil
}

// discover scans the bundles directory and records available bundles
// without loading them.
func (r *BundleRegistry) discover() error {
	if r.bundlesDir == "" {
		r.logger.Info("No bundles directory configured")
		return nil
	}
	if _, err := os.Stat(r.bundlesDir); os.IsNotExist(err) {
		r.logger.Warn("Bundles directory does not exist",
			zap.String("dir", r.bundlesDir))
		return nil
	}

	entries, err := os.ReadDir(r.bundlesDir)
	if err != nil {
		return fmt.Errorf("reading bundles directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(r.bundlesDir, name)
		if _, err := os.Stat(filepath.Join(path, "manifest.json")); err != nil {
			r.logger.Debug("Skipping directory without manifest",
				zap.String("dir", name))
			continue
		}
		r.discovered[name] = &BundleInfo{Name: name, Path: path}
		r.logger.Info("Discovered bundle (not loaded)",
			zap.String("name", name),
			zap.String("path", path))
	}

	r.logger.Info("Bundle discovery complete",
		zap.Int("bundles_discovered", len(r.discovered)),
		zap.Duration("keep_alive", r.keepAlive))
	return nil
}

// Get returns a bundle by name, loading it on first use.
func (r *BundleRegistry) Get(name string) (*bundle.Bundle, error) {
	r.pinnedMu.RLock()
	if b, ok := r.pinned[name]; ok {
		r.pinnedMu.RUnlock()
		return b, nil
	}
	r.pinnedMu.RUnlock()

	if item := r.cache.Get(name); item != nil {
		RecordCacheHit("bundle")
		return item.Value(), nil
	}

	r.mu.RLock()
	info, known := r.discovered[name]
	r.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", bundle.ErrBundleNotFound, name)
	}
	return r.load(info)
}

func (r *BundleRegistry) load(info *BundleInfo) (*bundle.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the lock.
	if item := r.cache.Get(info.Name); item != nil {
		return item.Value(), nil
	}
	RecordCacheMiss("bundle")

	r.logger.Info("Loading bundle on demand",
		zap.String("bundle", info.Name),
		zap.String("path", info.Path))

	start := time.Now()
	b, err := bundle.Load(info.Path)
	if err != nil {
		r.logger.Error("Failed to load bundle",
			zap.String("bundle", info.Name),
			zap.Error(err))
		return nil, fmt.Errorf("loading bundle %s: %w", info.Name, err)
	}
	RecordBundleLoadDuration(info.Name, time.Since(start).Seconds())

	r.cache.Set(info.Name, b, ttlcache.DefaultTTL)
	r.logger.Info("Loaded bundle",
		zap.String("bundle", info.Name),
		zap.Int("vocab_size", b.Vocab.Size()),
		zap.Bool("span_scorer", b.SpanScorer != nil),
		zap.Duration("duration", time.Since(start)))
	return b, nil
}

// Pin loads a bundle if needed and marks it as never evicted.
func (r *BundleRegistry) Pin(name string) error {
	r.pinnedMu.RLock()
	if r.pinned[name] != nil {
		r.pinnedMu.RUnlock()
		return nil
	}
	r.pinnedMu.RUnlock()

	b, err := r.Get(name)
	if err != nil {
		return fmt.Errorf("pin bundle %s: %w", name, err)
	}

	r.pinnedMu.Lock()
	r.pinned[name] = b
	r.pinnedMu.Unlock()
	r.cache.Delete(name)

	r.logger.Info("Pinned bundle (will not be evicted)",
		zap.String("bundle", name))
	return nil
}

// IsPinned reports whether a bundle is pinned.
func (r *BundleRegistry) IsPinned(name string) bool {
	r.pinnedMu.RLock()
	defer r.pinnedMu.RUnlock()
	return r.pinned[name] != nil
}

// List returns all discovered bundle names.
func (r *BundleRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.discovered))
	for name := range r.discovered {
		names = append(names, name)
	}
	return names
}

// ListLoaded returns currently loaded bundle names, pinned first.
func (r *BundleRegistry) ListLoaded() []string {
	keys := r.cache.Keys()
	r.pinnedMu.RLock()
	names := make([]string, 0, len(keys)+len(r.pinned))
	for name := range r.pinned {
		names = append(names, name)
	}
	r.pinnedMu.RUnlock()
	return append(names, keys...)
}

// IsLoaded reports whether a bundle is currently in memory.
func (r *BundleRegistry) IsLoaded(name string) bool {
	r.pinnedMu.RLock()
	isPinned := r.pinned[name] != nil
	r.pinnedMu.RUnlock()
	return isPinned || r.cache.Has(name)
}

// Unload evicts a bundle from memory. Pinned bundles stay put.
func (r *BundleRegistry) Unload(name string) {
	if r.IsPinned(name) {
		r.logger.Debug("Cannot unload pinned bundle",
			zap.String("bundle", name))
		return
	}
	r.cache.Delete(name)
}

// Preload loads the named bundles up front to avoid first-request
// latency.
func (r *BundleRegistry) Preload(names []string) error {
	if len(names) == 0 {
		return nil
	}
	var loaded, failed int
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			r.logger.Warn("Failed to preload bundle",
				zap.String("bundle", name),
				zap.Error(err))
			failed++
		} else {
			loaded++
		}
	}
	r.logger.Info("Preloading complete",
		zap.Int("loaded", loaded),
		zap.Int("failed", failed))
	if failed > 0 && loaded == 0 {
		return fmt.Errorf("all %d bundles failed to preload", failed)
	}
	return nil
}

// Close stops the cache and drops every loaded bundle.
func (r *BundleRegistry) Close() {
	r.cache.Stop()
	r.cache.DeleteAll()
	r.pinnedMu.Lock()
	r.pinned = make(map[string]*bundle.Bundle)
	r.pinnedMu.Unlock()
}

// Stats returns registry statistics.
func (r *BundleRegistry) Stats() map[string]any {
	metrics := r.cache.Metrics()
	r.pinnedMu.RLock()
	pinnedCount := len(r.pinned)
	r.pinnedMu.RUnlock()
	r.mu.RLock()
	discovered := len(r.discovered)
	r.mu.RUnlock()
	return map[string]any{
		"discovered": discovered,
		"loaded":     r.cache.Len() + pinnedCount,
		"pinned":     pinnedCount,
		"hits":       metrics.Hits,
		"misses":     metrics.Misses,
	}
}
