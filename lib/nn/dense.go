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
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer computing y = W*x + b.
// W is Out x In, stored row-major.
type Dense struct {
	In  int
	Out int

	w  *mat.Dense
	b  []float64
	gw *mat.Dense
	gb []float64
}

// NewDense creates a dense layer with Glorot-initialized weights drawn
// from rng. The rng is the only source of randomness, so construction
// is reproducible under a fixed seed.
func NewDense(in, out int, rng *rand.Rand) *Dense {
	scale := math.Sqrt(2.0 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return &Dense{
		In:  in,
		Out: out,
		w:   mat.NewDense(out, in, data),
		b:   make([]float64, out),
		gw:  mat.NewDense(out, in, nil),
		gb:  make([]float64, out),
	}
}

// Forward computes W*x + b.
func (d *Dense) Forward(x []float64) []float64 {
	y := make([]float64, d.Out)
	yv := mat.NewVecDense(d.Out, y)
	yv.MulVec(d.w, mat.NewVecDense(d.In, x))
	floats.Add(y, d.b)
	return y
}

// Backward accumulates parameter gradients for the given upstream
// gradient dy at input x and returns the gradient w.r.t. x.
func (d *Dense) Backward(x, dy []float64) []float64 {
	gw := d.gw.RawMatrix().Data
	for i := 0; i < d.Out; i++ {
		row := gw[i*d.In : (i+1)*d.In]
		floats.AddScaled(row, dy[i], x)
		d.gb[i] += dy[i]
	}
	dx := make([]float64, d.In)
	mat.NewVecDense(d.In, dx).MulVec(d.w.T(), mat.NewVecDense(d.Out, dy))
	return dx
}

// Params exposes the layer parameters for optimization and snapshots.
func (d *Dense) Params() []*Param {
	return []*Param{
		{Name: "w", Value: d.w.RawMatrix().Data, Grad: d.gw.RawMatrix().Data},
		{Name: "b", Value: d.b, Grad: d.gb},
	}
}

// DenseState is the serializable form of a Dense layer.
type DenseState struct {
	In  int       `json:"in"`
	Out int       `json:"out"`
	W   []float64 `json:"w"`
	B   []float64 `json:"b"`
}

// State returns a deep copy of the layer parameters.
func (d *Dense) State() DenseState {
	return DenseState{
		In:  d.In,
		Out: d.Out,
		W:   append([]float64(nil), d.w.RawMatrix().Data...),
		B:   append([]float64(nil), d.b...),
	}
}

// DenseFromState reconstructs a Dense layer from its serialized form.
func DenseFromState(st DenseState) (*Dense, error) {
	if st.In <= 0 || st.Out <= 0 {
		return nil, fmt.Errorf("invalid dense shape %dx%d", st.Out, st.In)
	}
	if len(st.W) != st.In*st.Out || len(st.B) != st.Out {
		return nil, fmt.Errorf("dense shape %dx%d does not match %d weights / %d biases",
			st.Out, st.In, len(st.W), len(st.B))
	}
	return &Dense{
		In:  st.In,
		Out: st.Out,
		w:   mat.NewDense(st.Out, st.In, append([]float64(nil), st.W...)),
		b:   append([]float64(nil), st.B...),
		gw:  mat.NewDense(st.Out, st.In, nil),
		gb:  make([]float64, st.Out),
	}, nil
}

// Embedding is a learned lookup table with Rows vectors of width Dim.
type Embedding struct {
	Rows int
	Dim  int

	w []float64
	g []float64
}

// NewEmbedding creates an embedding table initialized from rng.
func NewEmbedding(rows, dim int, rng *rand.Rand) *Embedding {
	scale := 1.0 / math.Sqrt(float64(dim))
	w := make([]float64, rows*dim)
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
	return &Embedding{
		Rows: rows,
		Dim:  dim,
		w:    w,
		g:    make([]float64, rows*dim),
	}
}

// Lookup returns the vector for row i. The returned slice aliases the
// table; callers must not modify it.
func (e *Embedding) Lookup(i int) []float64 {
	return e.w[i*e.Dim : (i+1)*e.Dim]
}

// Accumulate adds grad into the gradient accumulator for row i.
func (e *Embedding) Accumulate(i int, grad []float64) {
	floats.Add(e.g[i*e.Dim:(i+1)*e.Dim], grad)
}

// Params exposes the table for optimization and snapshots.
func (e *Embedding) Params() []*Param {
	return []*Param{{Name: "embedding", Value: e.w, Grad: e.g}}
}

// EmbeddingState is the serializable form of an Embedding.
type EmbeddingState struct {
	Rows int       `json:"rows"`
	Dim  int       `json:"dim"`
	W    []float64 `json:"w"`
}

// State returns a deep copy of the table.
func (e *Embedding) State() EmbeddingState {
	return EmbeddingState{
		Rows: e.Rows,
		Dim:  e.Dim,
		W:    append([]float64(nil), e.w...),
	}
}

// EmbeddingFromState reconstructs an Embedding from its serialized form.
func EmbeddingFromState(st EmbeddingState) (*Embedding, error) {
	if st.Rows <= 0 || st.Dim <= 0 {
		return nil, fmt.Errorf("invalid embedding shape %dx%d", st.Rows, st.Dim)
	}
	if len(st.W) != st.Rows*st.Dim {
		return nil, fmt.Errorf("embedding shape %dx%d does not match %d weights",
			st.Rows, st.Dim, len(st.W))
	}
	return &Embedding{
		Rows: st.Rows,
		Dim:  st.Dim,
		w:    append([]float64(nil), st.W...),
		g:    make([]float64, st.Rows*st.Dim),
	}, nil
}
