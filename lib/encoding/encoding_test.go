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

package encoding

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfly/coref/lib/nn"
)

func TestVocabularyUnknown(t *testing.T) {
	v := BuildVocabulary([]string{"john", "works", "at", "google"})
	assert.Equal(t, UnknownID, v.ID("zeppelin"))
	assert.NotEqual(t, UnknownID, v.ID("john"))
	assert.Equal(t, 5, v.Size()) // 4 tokens + <unk>
}

func TestVocabularyStableIDs(t *testing.T) {
	v := NewVocabulary()
	first := v.Add("he")
	v.Add("she")
	assert.Equal(t, first, v.Add("he"))
	assert.Equal(t, first, v.ID("he"))
	require.NoError(t, v.Validate())
}

func TestVocabularyValidateCatchesCorruption(t *testing.T) {
	v := BuildVocabulary([]string{"a", "b"})
	v.ToID["a"] = 99
	require.Error(t, v.Validate())
}

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder(EncoderConfig{VocabSize: 6, EmbeddingDim: 3, HiddenDim: 2}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	return enc
}

func TestEncoderEmptyInput(t *testing.T) {
	enc := newTestEncoder(t)
	states, err := enc.Encode(nil)
	require.NoError(t, err)
	assert.NotNil(t, states)
	assert.Empty(t, states)
}

func TestEncoderOutputWidth(t *testing.T) {
	enc := newTestEncoder(t)
	states, err := enc.Encode([]int{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, states, 3)
	for _, s := range states {
		assert.Len(t, s, enc.StateDim())
	}
}

func TestEncoderDeterministic(t *testing.T) {
	enc := newTestEncoder(t)
	a, err := enc.Encode([]int{4, 1, 0, 2})
	require.NoError(t, err)
	b, err := enc.Encode([]int{4, 1, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncoderRejectsOutOfRangeIDs(t *testing.T) {
	enc := newTestEncoder(t)
	_, err := enc.Encode([]int{1, 99})
	require.Error(t, err)
	_, err = enc.Encode([]int{-1})
	require.Error(t, err)
}

func TestEncoderContextSensitivity(t *testing.T) {
	// The same token id in different contexts gets different vectors.
	enc := newTestEncoder(t)
	a, err := enc.Encode([]int{3, 1, 2})
	require.NoError(t, err)
	b, err := enc.Encode([]int{5, 1, 4})
	require.NoError(t, err)
	assert.NotEqual(t, a[1], b[1])
}

// TestEncoderBackwardGradientCheck verifies BPTT against central
// differences on a scalar objective sum_t <states[t], u_t>.
func TestEncoderBackwardGradientCheck(t *testing.T) {
	enc := newTestEncoder(t)
	ids := []int{1, 3, 2}
	rng := rand.New(rand.NewSource(99))

	dStates := make([][]float64, len(ids))
	for i := range dStates {
		dStates[i] = make([]float64, enc.StateDim())
		for j := range dStates[i] {
			dStates[i][j] = rng.NormFloat64()
		}
	}

	objective := func() float64 {
		states, err := enc.Encode(ids)
		require.NoError(t, err)
		var sum float64
		for i, s := range states {
			for j, v := range s {
				sum += v * dStates[i][j]
			}
		}
		return sum
	}

	_, cache, err := enc.EncodeForBackward(ids)
	require.NoError(t, err)
	params := enc.Params()
	nn.ZeroGrad(params)
	enc.Backward(cache, dStates)

	const h = 1e-6
	for _, p := range params {
		for i := 0; i < len(p.Value); i += 5 {
			orig := p.Value[i]
			p.Value[i] = orig + h
			hi := objective()
			p.Value[i] = orig - h
			lo := objective()
			p.Value[i] = orig
			assert.InDeltaf(t, (hi-lo)/(2*h), p.Grad[i], 1e-4,
				"param %s index %d", p.Name, i)
		}
	}
}

func TestEncoderStateRoundtrip(t *testing.T) {
	enc := newTestEncoder(t)
	want, err := enc.Encode([]int{2, 4, 1})
	require.NoError(t, err)

	got, err := EncoderFromState(enc.State())
	require.NoError(t, err)
	states, err := got.Encode([]int{2, 4, 1})
	require.NoError(t, err)
	assert.Equal(t, want, states)
}

func newTestSpanBuilder(t *testing.T) *SpanBuilder {
	t.Helper()
	b, err := NewSpanBuilder(3, 2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	return b
}

func randomStates(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	states := make([][]float64, n)
	for i := range states {
		states[i] = make([]float64, dim)
		for j := range states[i] {
			states[i][j] = rng.NormFloat64()
		}
	}
	return states
}

func TestSpanBuilderIsPure(t *testing.T) {
	b := newTestSpanBuilder(t)
	states := randomStates(5, 4, 1)
	a, err := b.Build(states, 1, 3)
	require.NoError(t, err)
	c, err := b.Build(states, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Len(t, a, b.Dim(4))
}

func TestSpanBuilderSingleToken(t *testing.T) {
	// start == end degenerates interior pooling to that one state.
	b := newTestSpanBuilder(t)
	states := randomStates(3, 4, 2)
	repr, err := b.Build(states, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, states[2], repr[:4])
	assert.Equal(t, states[2], repr[4:8])
	assert.Equal(t, states[2], repr[8:12])
}

func TestSpanBuilderWidthClamp(t *testing.T) {
	b := newTestSpanBuilder(t)
	states := randomStates(10, 4, 3)
	wide, err := b.Build(states, 0, 9) // width 9 > maxWidth 3
	require.NoError(t, err)
	exact, err := b.Build(states, 0, 3) // width 3 == maxWidth
	require.NoError(t, err)
	// Width features are identical once clamped.
	assert.Equal(t, exact[12:], wide[12:])
}

func TestSpanBuilderRejectsBadRanges(t *testing.T) {
	b := newTestSpanBuilder(t)
	states := randomStates(3, 4, 4)
	for _, tc := range [][2]int{{-1, 1}, {2, 1}, {0, 3}} {
		_, err := b.Build(states, tc[0], tc[1])
		require.Errorf(t, err, "span [%d, %d]", tc[0], tc[1])
	}
}

func TestSpanBuilderBackwardGradientCheck(t *testing.T) {
	b := newTestSpanBuilder(t)
	states := randomStates(4, 4, 5)
	rng := rand.New(rand.NewSource(6))

	dRepr := make([]float64, b.Dim(4))
	for i := range dRepr {
		dRepr[i] = rng.NormFloat64()
	}

	objective := func() float64 {
		repr, err := b.Build(states, 1, 3)
		require.NoError(t, err)
		var sum float64
		for i, v := range repr {
			sum += v * dRepr[i]
		}
		return sum
	}

	dStates := make([][]float64, len(states))
	for i := range dStates {
		dStates[i] = make([]float64, 4)
	}
	b.Backward(dStates, 1, 3, dRepr)

	const h = 1e-6
	for t2 := range states {
		for j := range states[t2] {
			orig := states[t2][j]
			states[t2][j] = orig + h
			hi := objective()
			states[t2][j] = orig - h
			lo := objective()
			states[t2][j] = orig
			assert.InDeltaf(t, (hi-lo)/(2*h), dStates[t2][j], 1e-6,
				"state %d index %d", t2, j)
		}
	}
}

func TestSpanBuilderStateRoundtrip(t *testing.T) {
	b := newTestSpanBuilder(t)
	states := randomStates(4, 4, 8)
	want, err := b.Build(states, 0, 2)
	require.NoError(t, err)

	got, err := SpanBuilderFromState(b.State())
	require.NoError(t, err)
	repr, err := got.Build(states, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, want, repr)
}
