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

import "math"

// Sigmoid maps x to (0, 1).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// SigmoidDeriv is the derivative of the sigmoid expressed in terms of
// its output y = Sigmoid(x).
func SigmoidDeriv(y float64) float64 {
	return y * (1 - y)
}

// Tanh applies the hyperbolic tangent.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// TanhDeriv is the derivative of tanh expressed in terms of its output.
func TanhDeriv(y float64) float64 {
	return 1 - y*y
}

// ReLU applies max(0, x) element-wise in place over dst.
func ReLU(dst []float64) {
	for i, v := range dst {
		if v < 0 {
			dst[i] = 0
		}
	}
}

// ReLUBackward zeroes entries of grad where the forward activation was
// not positive. act must be the post-activation values.
func ReLUBackward(grad, act []float64) {
	for i, v := range act {
		if v <= 0 {
			grad[i] = 0
		}
	}
}
