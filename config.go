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

import "fmt"

// Strategy selects how pairwise scores become chains.
type Strategy string

const (
	// StrategyAgglomerative merges the best-scoring cluster pair each
	// round until no pair clears the threshold.
	StrategyAgglomerative Strategy = "agglomerative"

	// StrategyGreedy links each mention to its best-scoring prior
	// mention in one left-to-right pass.
	StrategyGreedy Strategy = "greedy"
)

// Options configures a resolver.
type Options struct {
	Strategy Strategy `json:"strategy" mapstructure:"strategy"`

	// MinPairScore is the clustering threshold: pairs scoring below it
	// never cause a merge or link.
	MinPairScore float64 `json:"min_pair_score" mapstructure:"min_pair_score"`

	// MinSpanScore filters enumerated spans before top-k selection in
	// end-to-end resolution.
	MinSpanScore float64 `json:"min_span_score" mapstructure:"min_span_score"`

	// TopKSpans caps how many spans survive pruning.
	TopKSpans int `json:"top_k_spans" mapstructure:"top_k_spans"`

	// MaxTokenDistance and MaxSentenceDistance bound which mention
	// pairs are scored at all; pairs outside either window are never
	// considered.
	MaxTokenDistance    int `json:"max_token_distance" mapstructure:"max_token_distance"`
	MaxSentenceDistance int `json:"max_sentence_distance" mapstructure:"max_sentence_distance"`

	// ContextWindow is how many context tokens are encoded on each side
	// of a mention when building its representation. It must match the
	// window convention the model's training corpus used.
	ContextWindow int `json:"context_window" mapstructure:"context_window"`
}

// DefaultOptions returns the default resolver configuration.
func DefaultOptions() Options {
	return Options{
		Strategy:            StrategyAgglomerative,
		MinPairScore:        0.5,
		MinSpanScore:        0.5,
		TopKSpans:           50,
		MaxTokenDistance:    100,
		MaxSentenceDistance: 5,
		ContextWindow:       10,
	}
}

// Validate rejects out-of-range options.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategyAgglomerative, StrategyGreedy:
	default:
		return fmt.Errorf("unknown strategy %q", o.Strategy)
	}
	if o.MinPairScore < 0 || o.MinPairScore > 1 {
		return fmt.Errorf("min pair score must be in [0, 1], got %v", o.MinPairScore)
	}
	if o.MinSpanScore < 0 || o.MinSpanScore > 1 {
		return fmt.Errorf("min span score must be in [0, 1], got %v", o.MinSpanScore)
	}
	if o.TopKSpans <= 0 {
		return fmt.Errorf("top-k spans must be positive, got %d", o.TopKSpans)
	}
	if o.MaxTokenDistance <= 0 {
		return fmt.Errorf("max token distance must be positive, got %d", o.MaxTokenDistance)
	}
	if o.MaxSentenceDistance <= 0 {
		return fmt.Errorf("max sentence distance must be positive, got %d", o.MaxSentenceDistance)
	}
	if o.ContextWindow <= 0 {
		return fmt.Errorf("context window must be positive, got %d", o.ContextWindow)
	}
	return nil
}
