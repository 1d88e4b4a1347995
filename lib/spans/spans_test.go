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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateCounts(t *testing.T) {
	tests := []struct {
		name      string
		numTokens int
		maxWidth  int
		want      int
	}{
		{"five tokens width three", 5, 3, 12}, // 5+4+3
		{"single token", 1, 3, 1},
		{"width one", 4, 1, 4},
		{"width exceeds length", 2, 10, 3}, // (0,0) (0,1) (1,1)
		{"empty", 0, 3, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, Enumerate(tc.numTokens, tc.maxWidth), tc.want)
		})
	}
}

func TestEnumerateDocumentOrder(t *testing.T) {
	out := Enumerate(3, 2)
	want := []Span{
		{Start: 0, End: 0}, {Start: 0, End: 1},
		{Start: 1, End: 1}, {Start: 1, End: 2},
		{Start: 2, End: 2},
	}
	assert.Equal(t, want, out)
}

func TestEnumerateWidthBound(t *testing.T) {
	for _, s := range Enumerate(20, 4) {
		assert.LessOrEqual(t, s.Width(), 4)
		assert.GreaterOrEqual(t, s.Start, 0)
		assert.Less(t, s.End, 20)
	}
}

func spanSet(spans []Span) map[[2]int]bool {
	set := make(map[[2]int]bool, len(spans))
	for _, s := range spans {
		set[[2]int{s.Start, s.End}] = true
	}
	return set
}

func TestPruneKeepsTopK(t *testing.T) {
	candidates := []Span{
		{Start: 0, End: 0, Score: 0.9},
		{Start: 1, End: 2, Score: 0.7},
		{Start: 3, End: 3, Score: 0.8},
		{Start: 4, End: 4, Score: 0.1},
	}
	out := Prune(candidates, PruneConfig{TopK: 2, MinScore: 0})
	require.Len(t, out, 2)
	set := spanSet(out)
	assert.True(t, set[[2]int{0, 0}])
	assert.True(t, set[[2]int{3, 3}])
}

func TestPruneReturnsDocumentOrder(t *testing.T) {
	candidates := []Span{
		{Start: 5, End: 5, Score: 0.9},
		{Start: 1, End: 1, Score: 0.8},
		{Start: 3, End: 4, Score: 0.85},
	}
	out := Prune(candidates, PruneConfig{TopK: 3, MinScore: 0})
	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].Start)
	assert.Equal(t, 3, out[1].Start)
	assert.Equal(t, 5, out[2].Start)
}

func TestPruneMinScoreExcludesWithinTopK(t *testing.T) {
	candidates := []Span{
		{Start: 0, End: 0, Score: 0.9},
		{Start: 1, End: 1, Score: 0.2},
	}
	out := Prune(candidates, PruneConfig{TopK: 50, MinScore: 0.5})
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Start)
}

func TestPruneTieBreaking(t *testing.T) {
	// Equal scores: shorter span wins, then earlier start.
	candidates := []Span{
		{Start: 0, End: 2, Score: 0.5},
		{Start: 4, End: 4, Score: 0.5},
		{Start: 2, End: 2, Score: 0.5},
	}
	out := Prune(candidates, PruneConfig{TopK: 2, MinScore: 0})
	require.Len(t, out, 2)
	set := spanSet(out)
	assert.True(t, set[[2]int{2, 2}])
	assert.True(t, set[[2]int{4, 4}])
}

func TestPruneMonotonicInTopK(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	var candidates []Span
	for _, s := range Enumerate(30, 4) {
		s.Score = rng.Float64()
		candidates = append(candidates, s)
	}
	prev := spanSet(Prune(candidates, PruneConfig{TopK: 1, MinScore: 0}))
	for k := 2; k <= len(candidates)+1; k += 7 {
		cur := spanSet(Prune(candidates, PruneConfig{TopK: k, MinScore: 0}))
		for span := range prev {
			assert.Truef(t, cur[span], "span %v survived top-%d but not a larger top-k", span, k)
		}
		prev = cur
	}
}

func TestPruneConfigValidate(t *testing.T) {
	assert.Error(t, PruneConfig{TopK: 0, MinScore: 0.5}.Validate())
	assert.Error(t, PruneConfig{TopK: 10, MinScore: 1.5}.Validate())
	assert.Error(t, PruneConfig{TopK: 10, MinScore: -0.1}.Validate())
	assert.NoError(t, PruneConfig{TopK: 50, MinScore: 0.5}.Validate())
}

func TestScorerRange(t *testing.T) {
	scorer, err := NewScorer(6, 4, rand.New(rand.NewSource(33)))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(34))
	for i := 0; i < 25; i++ {
		repr := make([]float64, 6)
		for j := range repr {
			repr[j] = rng.NormFloat64() * 3
		}
		score, err := scorer.Score(repr)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScorerStateRoundtrip(t *testing.T) {
	scorer, err := NewScorer(5, 3, rand.New(rand.NewSource(35)))
	require.NoError(t, err)
	repr := []float64{0.1, -0.4, 0.9, 0.2, -1.1}
	want, err := scorer.Score(repr)
	require.NoError(t, err)

	got, err := ScorerFromState(scorer.State())
	require.NoError(t, err)
	score, err := got.Score(repr)
	require.NoError(t, err)
	assert.Equal(t, want, score)
}
