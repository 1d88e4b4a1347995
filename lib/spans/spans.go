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

// Package spans enumerates candidate mention spans over a token
// sequence and prunes them to the top-scoring candidates. It is used by
// the end-to-end resolution strategy; the pipelined strategy gets its
// candidates from an external mention detector instead.
package spans

import (
	"fmt"
	"sort"
)

// Span is a contiguous token range, identified by absolute token
// indices with End inclusive. Spans are created during enumeration,
// consumed by scoring and clustering, and discarded after chains are
// built.
type Span struct {
	Start          int
	End            int
	Score          float64
	Representation []float64
}

// Width returns the number of tokens the span covers.
func (s Span) Width() int { return s.End - s.Start + 1 }

// Enumerate generates every span with 0 <= end-start < maxWidth over a
// sequence of numTokens tokens, in document order (start, then end).
// For numTokens = 5 and maxWidth = 3 that is 5+4+3 = 12 spans.
func Enumerate(numTokens, maxWidth int) []Span {
	if numTokens <= 0 || maxWidth <= 0 {
		return nil
	}
	out := make([]Span, 0, numTokens*maxWidth)
	for start := 0; start < numTokens; start++ {
		for end := start; end < numTokens && end-start < maxWidth; end++ {
			out = append(out, Span{Start: start, End: end})
		}
	}
	return out
}

// PruneConfig bounds the candidate set kept after span scoring.
type PruneConfig struct {
	// TopK is the maximum number of spans to keep.
	TopK int

	// MinScore excludes spans scoring below it even within TopK.
	MinScore float64
}

// Validate rejects out-of-range pruning parameters.
func (c PruneConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", c.TopK)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min span score must be in [0, 1], got %v", c.MinScore)
	}
	return nil
}

// Prune keeps the TopK highest-scoring spans at or above MinScore.
// Ties break by shorter span, then earlier start, so the kept set is
// deterministic and grows monotonically with TopK. The result is
// returned in document order.
func Prune(candidates []Span, cfg PruneConfig) []Span {
	kept := make([]Span, 0, len(candidates))
	for _, s := range candidates {
		if s.Score >= cfg.MinScore {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Width() != b.Width() {
			return a.Width() < b.Width()
		}
		return a.Start < b.Start
	})
	if len(kept) > cfg.TopK {
		kept = kept[:cfg.TopK]
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].End < kept[j].End
	})
	return kept
}
