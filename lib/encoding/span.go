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
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/lexfly/coref/lib/nn"
)

// SpanBuilder converts a contiguous token range over encoder outputs
// into a fixed-width span representation:
//
//	concat(state[start], state[end], mean(states[start..end]), widthEmbedding[clamp(end-start)])
//
// Build is a pure function of its inputs; identical inputs always give
// identical output.
type SpanBuilder struct {
	maxWidth int
	widths   *nn.Embedding
}

// NewSpanBuilder creates a builder whose width embedding covers widths
// 0..maxWidth (end-start, clamped).
func NewSpanBuilder(maxWidth, widthDim int, rng *rand.Rand) (*SpanBuilder, error) {
	if maxWidth <= 0 {
		return nil, fmt.Errorf("max width must be positive, got %d", maxWidth)
	}
	if widthDim <= 0 {
		return nil, fmt.Errorf("width dim must be positive, got %d", widthDim)
	}
	return &SpanBuilder{
		maxWidth: maxWidth,
		widths:   nn.NewEmbedding(maxWidth+1, widthDim, rng),
	}, nil
}

// MaxWidth returns the clamp bound for the width feature.
func (b *SpanBuilder) MaxWidth() int { return b.maxWidth }

// Dim returns the representation width for encoder states of width stateDim.
func (b *SpanBuilder) Dim(stateDim int) int {
	return 3*stateDim + b.widths.Dim
}

// Build returns the span representation for states[start..end], both
// inclusive. start must satisfy 0 <= start <= end < len(states).
func (b *SpanBuilder) Build(states [][]float64, start, end int) ([]float64, error) {
	if start < 0 || start > end || end >= len(states) {
		return nil, fmt.Errorf("span [%d, %d] out of range for %d states", start, end, len(states))
	}
	d := len(states[start])
	repr := make([]float64, 3*d+b.widths.Dim)
	copy(repr[:d], states[start])
	copy(repr[d:2*d], states[end])

	pooled := repr[2*d : 3*d]
	for t := start; t <= end; t++ {
		floats.Add(pooled, states[t])
	}
	floats.Scale(1/float64(end-start+1), pooled)

	copy(repr[3*d:], b.widths.Lookup(b.clampWidth(end-start)))
	return repr, nil
}

// Backward distributes the representation gradient dRepr back onto the
// encoder states (added into dStates) and the width embedding.
func (b *SpanBuilder) Backward(dStates [][]float64, start, end int, dRepr []float64) {
	d := len(dStates[start])
	floats.Add(dStates[start], dRepr[:d])
	floats.Add(dStates[end], dRepr[d:2*d])

	n := float64(end - start + 1)
	pooledGrad := make([]float64, d)
	floats.AddScaled(pooledGrad, 1/n, dRepr[2*d:3*d])
	for t := start; t <= end; t++ {
		floats.Add(dStates[t], pooledGrad)
	}

	b.widths.Accumulate(b.clampWidth(end-start), dRepr[3*d:])
}

func (b *SpanBuilder) clampWidth(w int) int {
	if w < 0 {
		return 0
	}
	if w > b.maxWidth {
		return b.maxWidth
	}
	return w
}

// Params exposes the width embedding for optimization and snapshots.
func (b *SpanBuilder) Params() []*nn.Param {
	return b.widths.Params()
}

// SpanBuilderState is the serializable form of a SpanBuilder.
type SpanBuilderState struct {
	MaxWidth int               `json:"max_width"`
	Widths   nn.EmbeddingState `json:"widths"`
}

// State returns a deep copy of the builder parameters.
func (b *SpanBuilder) State() SpanBuilderState {
	return SpanBuilderState{MaxWidth: b.maxWidth, Widths: b.widths.State()}
}

// SpanBuilderFromState reconstructs a SpanBuilder from its serialized form.
func SpanBuilderFromState(st SpanBuilderState) (*SpanBuilder, error) {
	if st.MaxWidth <= 0 {
		return nil, fmt.Errorf("max width must be positive, got %d", st.MaxWidth)
	}
	widths, err := nn.EmbeddingFromState(st.Widths)
	if err != nil {
		return nil, fmt.Errorf("width embedding: %w", err)
	}
	if widths.Rows != st.MaxWidth+1 {
		return nil, fmt.Errorf("width embedding has %d rows, want %d", widths.Rows, st.MaxWidth+1)
	}
	return &SpanBuilder{maxWidth: st.MaxWidth, widths: widths}, nil
}
