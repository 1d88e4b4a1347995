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

// Package nn implements the small differentiable building blocks the
// coreference models are made of: dense layers, embedding tables, and
// feed-forward scoring networks, each with an explicit forward pass and
// a backward pass that accumulates gradients into the owning parameters.
//
// Everything operates on float64 slices and fixed shapes. There is no
// graph construction: each component caches what its backward pass
// needs, which is enough for the specific recurrent and feed-forward
// networks used here.
package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Param is a named flat parameter vector paired with its gradient
// accumulator. Components expose their parameters so optimizers and
// snapshots can treat a whole model uniformly.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

// ZeroGrad resets all gradient accumulators in params.
func ZeroGrad(params []*Param) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// GradNorm returns the global L2 norm over all gradients in params.
func GradNorm(params []*Param) float64 {
	var sum float64
	for _, p := range params {
		n := floats.Norm(p.Grad, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ClipGradNorm scales all gradients so that their global L2 norm does
// not exceed maxNorm. Returns the pre-clip norm.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return norm
}

// Snapshot is a deep copy of a parameter set, used by the trainer to
// keep the best-so-far model across epochs.
type Snapshot [][]float64

// TakeSnapshot copies the current parameter values.
func TakeSnapshot(params []*Param) Snapshot {
	s := make(Snapshot, len(params))
	for i, p := range params {
		s[i] = append([]float64(nil), p.Value...)
	}
	return s
}

// RestoreSnapshot writes a previously taken snapshot back into params.
// The parameter layout must match the one the snapshot was taken from.
func RestoreSnapshot(params []*Param, s Snapshot) {
	for i, p := range params {
		copy(p.Value, s[i])
	}
}
