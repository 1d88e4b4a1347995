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

// Optimizer applies one update step to a parameter set using the
// gradients accumulated since the previous step.
type Optimizer interface {
	Step(params []*Param)
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LR float64
}

// Step applies value -= lr * grad.
func (o *SGD) Step(params []*Param) {
	for _, p := range params {
		for i, g := range p.Grad {
			p.Value[i] -= o.LR * g
		}
	}
}

// Adam implements the Adam update rule. State is keyed by parameter
// identity, so an Adam instance must be used with a single model.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    map[*Param][]float64
	v    map[*Param][]float64
}

// NewAdam creates an Adam optimizer with the usual defaults
// (beta1 0.9, beta2 0.999, eps 1e-8).
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[*Param][]float64),
		v:     make(map[*Param][]float64),
	}
}

// Step applies one bias-corrected Adam update.
func (o *Adam) Step(params []*Param) {
	o.step++
	c1 := 1 - math.Pow(o.Beta1, float64(o.step))
	c2 := 1 - math.Pow(o.Beta2, float64(o.step))
	for _, p := range params {
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(p.Value))
			o.m[p] = m
		}
		v, ok := o.v[p]
		if !ok {
			v = make([]float64, len(p.Value))
			o.v[p] = v
		}
		for i, g := range p.Grad {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
			mhat := m[i] / c1
			vhat := v[i] / c2
			p.Value[i] -= o.LR * mhat / (math.Sqrt(vhat) + o.Eps)
		}
	}
}
