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

package nn

import (
	"fmt"
	"math/rand"
)

// FeedForward is a two-layer scoring network: a ReLU hidden layer
// followed by a single sigmoid output unit. Both the span scorer and
// the pairwise compatibility scorer are instances of this shape.
type FeedForward struct {
	hidden *Dense
	out    *Dense
}

// FFNCache holds the forward-pass intermediates needed by Backward.
type FFNCache struct {
	x    []float64
	hact []float64
	mask []float64 // inverted-dropout mask, nil outside training
	p    float64
}

// NewFeedForward creates a scorer with the given input and hidden widths.
func NewFeedForward(in, hidden int, rng *rand.Rand) *FeedForward {
	return &FeedForward{
		hidden: NewDense(in, hidden, rng),
		out:    NewDense(hidden, 1, rng),
	}
}

// InputDim returns the expected input width.
func (f *FeedForward) InputDim() int { return f.hidden.In }

// Score runs the forward pass and returns the sigmoid output in [0, 1].
func (f *FeedForward) Score(x []float64) (float64, error) {
	p, _, err := f.forward(x)
	return p, err
}

// ScoreForBackward runs the forward pass keeping the intermediates
// required to backpropagate through this evaluation.
func (f *FeedForward) ScoreForBackward(x []float64) (float64, *FFNCache, error) {
	p, hact, err := f.forward(x)
	if err != nil {
		return 0, nil, err
	}
	return p, &FFNCache{x: x, hact: hact, p: p}, nil
}

// ScoreForBackwardDropout is ScoreForBackward with inverted dropout of
// the given rate applied to the hidden activations. rate 0 disables
// dropout; rng drives the mask, keeping training reproducible under a
// fixed seed.
func (f *FeedForward) ScoreForBackwardDropout(x []float64, rate float64, rng *rand.Rand) (float64, *FFNCache, error) {
	if rate <= 0 {
		return f.ScoreForBackward(x)
	}
	if rate >= 1 {
		return 0, nil, fmt.Errorf("dropout rate must be below 1, got %v", rate)
	}
	if len(x) != f.hidden.In {
		return 0, nil, fmt.Errorf("input width %d, want %d", len(x), f.hidden.In)
	}
	h := f.hidden.Forward(x)
	ReLU(h)
	mask := make([]float64, len(h))
	keep := 1 / (1 - rate)
	for i := range mask {
		if rng.Float64() >= rate {
			mask[i] = keep
		}
		h[i] *= mask[i]
	}
	o := f.out.Forward(h)
	p := Sigmoid(o[0])
	return p, &FFNCache{x: x, hact: h, mask: mask, p: p}, nil
}

func (f *FeedForward) forward(x []float64) (float64, []float64, error) {
	if len(x) != f.hidden.In {
		return 0, nil, fmt.Errorf("input width %d, want %d", len(x), f.hidden.In)
	}
	h := f.hidden.Forward(x)
	ReLU(h)
	o := f.out.Forward(h)
	return Sigmoid(o[0]), h, nil
}

// Backward accumulates parameter gradients for upstream gradient dp
// (w.r.t. the sigmoid output) and returns the gradient w.r.t. the input.
func (f *FeedForward) Backward(c *FFNCache, dp float64) []float64 {
	do := dp * SigmoidDeriv(c.p)
	dh := f.out.Backward(c.hact, []float64{do})
	if c.mask != nil {
		for i := range dh {
			dh[i] *= c.mask[i]
		}
	}
	ReLUBackward(dh, c.hact)
	return f.hidden.Backward(c.x, dh)
}

// Params exposes both layers for optimization and snapshots.
func (f *FeedForward) Params() []*Param {
	return append(f.hidden.Params(), f.out.Params()...)
}

// FeedForwardState is the serializable form of a FeedForward network.
type FeedForwardState struct {
	Hidden DenseState `json:"hidden"`
	Out    DenseState `json:"out"`
}

// State returns a deep copy of the network parameters.
func (f *FeedForward) State() FeedForwardState {
	return FeedForwardState{Hidden: f.hidden.State(), Out: f.out.State()}
}

// FeedForwardFromState reconstructs a FeedForward from its serialized form.
func FeedForwardFromState(st FeedForwardState) (*FeedForward, error) {
	hidden, err := DenseFromState(st.Hidden)
	if err != nil {
		return nil, fmt.Errorf("hidden layer: %w", err)
	}
	out, err := DenseFromState(st.Out)
	if err != nil {
		return nil, fmt.Errorf("output layer: %w", err)
	}
	if out.In != hidden.Out || out.Out != 1 {
		return nil, fmt.Errorf("layer shapes do not compose: hidden out %d, output in %d", hidden.Out, out.In)
	}
	return &FeedForward{hidden: hidden, out: out}, nil
}
