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
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent resolutions. Encoding and scoring are CPU
// bound, so admitting more work than cores only adds latency.
type Pool struct {
	sem     *semaphore.Weighted
	active  atomic.Int64
	waiting atomic.Int64
}

// NewPool creates a pool admitting at most size concurrent
// resolutions; size 0 means one slot per CPU.
func NewPool(size int) (*Pool, error) {
	if size < 0 {
		return nil, fmt.Errorf("pool size must be non-negative, got %d", size)
	}
	if size == 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}, nil
}

// Acquire blocks until a slot is free or the context is done. Callers
// must Release the slot when finished.
func (p *Pool) Acquire(ctx context.Context) error {
	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		RecordPoolRejection()
		return err
	}
	p.active.Add(1)
	UpdatePoolMetrics(p.Stats())
	return nil
}

// TryAcquire takes a slot without blocking and reports whether one was
// available.
func (p *Pool) TryAcquire() bool {
	if !p.sem.TryAcquire(1) {
		RecordPoolRejection()
		return false
	}
	p.active.Add(1)
	UpdatePoolMetrics(p.Stats())
	return true
}

// Release returns a slot to the pool.
func (p *Pool) Release() {
	p.active.Add(-1)
	p.sem.Release(1)
	UpdatePoolMetrics(p.Stats())
}

// PoolStats is a point-in-time view of pool occupancy.
type PoolStats struct {
	Active  int64 `json:"active"`
	Waiting int64 `json:"waiting"`
}

// Stats returns current pool occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Active:  p.active.Load(),
		Waiting: p.waiting.Load(),
	}
}
