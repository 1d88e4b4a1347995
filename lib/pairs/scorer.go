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

package pairs

import (
	"fmt"
	"math/rand"

	"github.com/lexfly/coref/lib/nn"
)

// Gate decides whether a candidate pair is eligible for scoring.
type Gate func(a, b Candidate) bool

// TokenGate gates pairs by token distance (end-to-end strategy).
func TokenGate(maxDistance int) Gate {
	return func(a, b Candidate) bool {
		return TokenDistance(a, b) <= maxDistance
	}
}

// SentenceGate gates pairs by sentence distance (pipelined strategy).
func SentenceGate(maxDistance int) Gate {
	return func(a, b Candidate) bool {
		return SentenceDistance(a, b) <= maxDistance
	}
}

// EligiblePairs returns every ordered pair (i, j) with i < j that
// passes the gate. Pairs outside the gate are absent from the result,
// not merely scored low, which bounds the quadratic pair cost.
func EligiblePairs(candidates []Candidate, gate Gate) [][2]int {
	var out [][2]int
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if gate(candidates[i], candidates[j]) {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

// Scorer estimates the probability that two candidates are coreferent.
// Input is concat(repr(a), repr(b), hand features); output is a sigmoid
// probability.
type Scorer struct {
	reprDim int
	ffn     *nn.FeedForward
}

// PairCache holds the forward intermediates for Backward.
type PairCache struct {
	ffn *nn.FFNCache
}

// NewScorer creates a pairwise scorer for representations of width reprDim.
func NewScorer(reprDim, hiddenDim int, rng *rand.Rand) (*Scorer, error) {
	if reprDim <= 0 || hiddenDim <= 0 {
		return nil, fmt.Errorf("scorer dims must be positive, got repr %d hidden %d", reprDim, hiddenDim)
	}
	return &Scorer{
		reprDim: reprDim,
		ffn:     nn.NewFeedForward(2*reprDim+FeatureWidth, hiddenDim, rng),
	}, nil
}

// ReprDim returns the expected representation width per candidate.
func (s *Scorer) ReprDim() int { return s.reprDim }

// ScorePair returns the coreference probability for a candidate pair.
func (s *Scorer) ScorePair(a, b Candidate, docLen int) (float64, error) {
	x, err := s.input(a, b, docLen)
	if err != nil {
		return 0, err
	}
	return s.ffn.Score(x)
}

// ScorePairForBackward is ScorePair keeping intermediates for Backward.
func (s *Scorer) ScorePairForBackward(a, b Candidate, docLen int) (float64, *PairCache, error) {
	x, err := s.input(a, b, docLen)
	if err != nil {
		return 0, nil, err
	}
	p, cache, err := s.ffn.ScoreForBackward(x)
	if err != nil {
		return 0, nil, err
	}
	return p, &PairCache{ffn: cache}, nil
}

// ScorePairForTraining is ScorePairForBackward with hidden-layer dropout.
func (s *Scorer) ScorePairForTraining(a, b Candidate, docLen int, dropout float64, rng *rand.Rand) (float64, *PairCache, error) {
	x, err := s.input(a, b, docLen)
	if err != nil {
		return 0, nil, err
	}
	p, cache, err := s.ffn.ScoreForBackwardDropout(x, dropout, rng)
	if err != nil {
		return 0, nil, err
	}
	return p, &PairCache{ffn: cache}, nil
}

// Backward accumulates parameter gradients for upstream gradient dScore
// and returns the gradients w.r.t. the two representations.
func (s *Scorer) Backward(cache *PairCache, dScore float64) (dA, dB []float64) {
	dx := s.ffn.Backward(cache.ffn, dScore)
	return dx[:s.reprDim], dx[s.reprDim : 2*s.reprDim]
}

func (s *Scorer) input(a, b Candidate, docLen int) ([]float64, error) {
	if len(a.Representation) != s.reprDim || len(b.Representation) != s.reprDim {
		return nil, fmt.Errorf("representation widths %d/%d, want %d",
			len(a.Representation), len(b.Representation), s.reprDim)
	}
	x := make([]float64, 0, 2*s.reprDim+FeatureWidth)
	x = append(x, a.Representation...)
	x = append(x, b.Representation...)
	x = append(x, HandFeatures(a, b, docLen)...)
	return x, nil
}

// Params exposes the scorer parameters.
func (s *Scorer) Params() []*nn.Param { return s.ffn.Params() }

// ScorerState is the serializable form of a Scorer.
type ScorerState struct {
	ReprDim int                 `json:"repr_dim"`
	FFN     nn.FeedForwardState `json:"ffn"`
}

// State returns a deep copy of the scorer parameters.
func (s *Scorer) State() ScorerState {
	return ScorerState{ReprDim: s.reprDim, FFN: s.ffn.State()}
}

// ScorerFromState reconstructs a Scorer from its serialized form.
func ScorerFromState(st ScorerState) (*Scorer, error) {
	ffn, err := nn.FeedForwardFromState(st.FFN)
	if err != nil {
		return nil, fmt.Errorf("pair scorer: %w", err)
	}
	if st.ReprDim <= 0 || ffn.InputDim() != 2*st.ReprDim+FeatureWidth {
		return nil, fmt.Errorf("pair scorer input %d does not match repr dim %d", ffn.InputDim(), st.ReprDim)
	}
	return &Scorer{reprDim: st.ReprDim, ffn: ffn}, nil
}
