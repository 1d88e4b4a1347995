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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandFeaturesWidth(t *testing.T) {
	a := Candidate{Start: 0, End: 0, Text: "john"}
	b := Candidate{Start: 5, End: 5, Text: "he"}
	f := HandFeatures(a, b, 10)
	require.Len(t, f, FeatureWidth)
	// Padding stays zero.
	for i := 12; i < FeatureWidth; i++ {
		assert.Zero(t, f[i])
	}
}

func TestHandFeaturesFlags(t *testing.T) {
	a := Candidate{Start: 0, End: 1, Text: "Barack Obama"}
	b := Candidate{Start: 20, End: 20, Text: "Obama"}
	f := HandFeatures(a, b, 100)

	assert.Equal(t, 0.0, f[5], "not an exact match")
	assert.Equal(t, 1.0, f[6], "shares a token")
	assert.Equal(t, 1.0, f[7], "same head token")
	assert.Equal(t, 1.0, f[10], "a starts the document")
	assert.Equal(t, 0.0, f[11])

	exact := HandFeatures(
		Candidate{Start: 3, End: 3, Text: "Google"},
		Candidate{Start: 9, End: 9, Text: "google"},
		100,
	)
	assert.Equal(t, 1.0, exact[5])
	assert.Equal(t, 1.0, exact[4], "same length")
}

func TestHandFeaturesPure(t *testing.T) {
	a := Candidate{Start: 2, End: 4, Text: "the big dog"}
	b := Candidate{Start: 9, End: 9, Text: "it"}
	assert.Equal(t, HandFeatures(a, b, 50), HandFeatures(a, b, 50))
}

func TestTokenDistance(t *testing.T) {
	a := Candidate{Start: 0, End: 2}
	b := Candidate{Start: 7, End: 8}
	assert.Equal(t, 5, TokenDistance(a, b))
	assert.Equal(t, 5, TokenDistance(b, a))
	// Overlap clamps to zero.
	assert.Equal(t, 0, TokenDistance(Candidate{Start: 0, End: 5}, Candidate{Start: 3, End: 6}))
}

func TestEligiblePairsExcludesDistantPairs(t *testing.T) {
	// Two spans farther apart than the bound are never present in the
	// scored-pairs set, not merely low-scored.
	candidates := []Candidate{
		{Index: 0, Start: 0, End: 0},
		{Index: 1, Start: 50, End: 50},
		{Index: 2, Start: 120, End: 120},
	}
	pairs := EligiblePairs(candidates, TokenGate(100))
	require.Len(t, pairs, 2)
	assert.Contains(t, pairs, [2]int{0, 1})
	assert.Contains(t, pairs, [2]int{1, 2})
	assert.NotContains(t, pairs, [2]int{0, 2})
}

func TestEligiblePairsSentenceGate(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, SentenceIndex: 0},
		{Index: 1, SentenceIndex: 3},
		{Index: 2, SentenceIndex: 9},
	}
	pairs := EligiblePairs(candidates, SentenceGate(5))
	require.Len(t, pairs, 1)
	assert.Equal(t, [2]int{0, 1}, pairs[0])
}

func testCandidates(t *testing.T, reprDim int) (Candidate, Candidate) {
	t.Helper()
	rng := rand.New(rand.NewSource(77))
	mk := func(start, end int, text string) Candidate {
		repr := make([]float64, reprDim)
		for i := range repr {
			repr[i] = rng.NormFloat64()
		}
		return Candidate{Start: start, End: end, Text: text, Representation: repr}
	}
	return mk(0, 0, "john"), mk(6, 6, "he")
}

func TestScorerRange(t *testing.T) {
	scorer, err := NewScorer(4, 8, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	a, b := testCandidates(t, 4)
	p, err := scorer.ScorePair(a, b, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestScorerRejectsWrongReprWidth(t *testing.T) {
	scorer, err := NewScorer(4, 8, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	a, b := testCandidates(t, 3)
	_, err = scorer.ScorePair(a, b, 10)
	require.Error(t, err)
}

func TestScorerDeterministic(t *testing.T) {
	scorer, err := NewScorer(4, 8, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	a, b := testCandidates(t, 4)
	p1, err := scorer.ScorePair(a, b, 10)
	require.NoError(t, err)
	p2, err := scorer.ScorePair(a, b, 10)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestScorerBackwardShapes(t *testing.T) {
	scorer, err := NewScorer(4, 8, rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	a, b := testCandidates(t, 4)
	_, cache, err := scorer.ScorePairForBackward(a, b, 10)
	require.NoError(t, err)
	dA, dB := scorer.Backward(cache, 1.0)
	assert.Len(t, dA, 4)
	assert.Len(t, dB, 4)
}

func TestScorerStateRoundtrip(t *testing.T) {
	scorer, err := NewScorer(4, 8, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	a, b := testCandidates(t, 4)
	want, err := scorer.ScorePair(a, b, 10)
	require.NoError(t, err)

	got, err := ScorerFromState(scorer.State())
	require.NoError(t, err)
	p, err := got.ScorePair(a, b, 10)
	require.NoError(t, err)
	assert.Equal(t, want, p)
}
