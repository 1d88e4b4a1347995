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

package spans

import (
	"fmt"
	"math/rand"

	"github.com/lexfly/coref/lib/nn"
)

// Scorer estimates how likely a span representation is a genuine
// mention. It is a feed-forward network with a sigmoid output in [0, 1].
type Scorer struct {
	ffn *nn.FeedForward
}

// NewScorer creates a span scorer for representations of width inputDim.
func NewScorer(inputDim, hiddenDim int, rng *rand.Rand) (*Scorer, error) {
	if inputDim <= 0 || hiddenDim <= 0 {
		return nil, fmt.Errorf("scorer dims must be positive, got input %d hidden %d", inputDim, hiddenDim)
	}
	return &Scorer{ffn: nn.NewFeedForward(inputDim, hiddenDim, rng)}, nil
}

// InputDim returns the expected span-representation width.
func (s *Scorer) InputDim() int { return s.ffn.InputDim() }

// Score returns the mention probability for a span representation.
func (s *Scorer) Score(repr []float64) (float64, error) {
	return s.ffn.Score(repr)
}

// ScoreForBackward is Score keeping the intermediates for Backward.
func (s *Scorer) ScoreForBackward(repr []float64) (float64, *nn.FFNCache, error) {
	return s.ffn.ScoreForBackward(repr)
}

// ScoreForTraining is ScoreForBackward with hidden-layer dropout.
func (s *Scorer) ScoreForTraining(repr []float64, dropout float64, rng *rand.Rand) (float64, *nn.FFNCache, error) {
	return s.ffn.ScoreForBackwardDropout(repr, dropout, rng)
}

// Backward accumulates gradients for upstream gradient dScore and
// returns the gradient w.r.t. the span representation.
func (s *Scorer) Backward(cache *nn.FFNCache, dScore float64) []float64 {
	return s.ffn.Backward(cache, dScore)
}

// Params exposes the scorer parameters.
func (s *Scorer) Params() []*nn.Param { return s.ffn.Params() }

// ScorerState is the serializable form of a Scorer.
type ScorerState struct {
	FFN nn.FeedForwardState `json:"ffn"`
}

// State returns a deep copy of the scorer parameters.
func (s *Scorer) State() ScorerState { return ScorerState{FFN: s.ffn.State()} }

// ScorerFromState reconstructs a Scorer from its serialized form.
func ScorerFromState(st ScorerState) (*Scorer, error) {
	ffn, err := nn.FeedForwardFromState(st.FFN)
	if err != nil {
		return nil, fmt.Errorf("span scorer: %w", err)
	}
	return &Scorer{ffn: ffn}, nil
}
