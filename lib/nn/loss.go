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

// ProbEpsilon bounds predicted probabilities away from 0 and 1 before
// any logarithm. Every cross-entropy computation must clip with it.
const ProbEpsilon = 1e-7

// ClipProb clamps p to [ProbEpsilon, 1-ProbEpsilon].
func ClipProb(p float64) float64 {
	if p < ProbEpsilon {
		return ProbEpsilon
	}
	if p > 1-ProbEpsilon {
		return 1 - ProbEpsilon
	}
	return p
}

// BCE returns the binary cross-entropy loss for predicted probability p
// against label y in {0, 1}, plus the gradient dLoss/dp. The prediction
// is clipped before the logarithm.
func BCE(p, y float64) (loss, grad float64) {
	p = ClipProb(p)
	loss = -(y*math.Log(p) + (1-y)*math.Log(1-p))
	grad = (p - y) / (p * (1 - p))
	return loss, grad
}
