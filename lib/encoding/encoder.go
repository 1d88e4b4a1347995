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

// EncoderConfig describes the encoder shape.
type EncoderConfig struct {
	VocabSize    int `json:"vocab_size"`
	EmbeddingDim int `json:"embedding_dim"`
	HiddenDim    int `json:"hidden_dim"`
}

// Validate rejects non-positive dimensions.
func (c EncoderConfig) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab size must be positive, got %d", c.VocabSize)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("hidden dim must be positive, got %d", c.HiddenDim)
	}
	return nil
}

// recurrentCell is a simple tanh recurrence:
// h_t = tanh(Wx * x_t + Wh * h_{t-1}).
type recurrentCell struct {
	wx *nn.Dense
	wh *nn.Dense
}

func newRecurrentCell(in, hidden int, rng *rand.Rand) *recurrentCell {
	return &recurrentCell{
		wx: nn.NewDense(in, hidden, rng),
		wh: nn.NewDense(hidden, hidden, rng),
	}
}

func (c *recurrentCell) step(x, prev []float64) []float64 {
	h := c.wx.Forward(x)
	floats.Add(h, c.wh.Forward(prev))
	for i, v := range h {
		h[i] = nn.Tanh(v)
	}
	return h
}

// Encoder produces per-position contextual vectors of width 2H: the
// concatenation of an independent left-to-right and right-to-left pass
// over learned token embeddings.
type Encoder struct {
	config EncoderConfig
	embed  *nn.Embedding
	fwd    *recurrentCell
	bwd    *recurrentCell
}

// NewEncoder creates an encoder with rng-initialized parameters.
func NewEncoder(config EncoderConfig, rng *rand.Rand) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{
		config: config,
		embed:  nn.NewEmbedding(config.VocabSize, config.EmbeddingDim, rng),
		fwd:    newRecurrentCell(config.EmbeddingDim, config.HiddenDim, rng),
		bwd:    newRecurrentCell(config.EmbeddingDim, config.HiddenDim, rng),
	}, nil
}

// Config returns the encoder shape.
func (e *Encoder) Config() EncoderConfig { return e.config }

// StateDim returns the width of one output vector (2H).
func (e *Encoder) StateDim() int { return 2 * e.config.HiddenDim }

// EncodeCache holds the forward-pass intermediates for Backward.
type EncodeCache struct {
	ids []int
	xs  [][]float64 // embedding vectors per position
	fh  [][]float64 // forward hidden states, fh[t] is state after token t
	bh  [][]float64 // backward hidden states, bh[t] is state after token t (right-to-left)
}

// Encode returns one contextual vector per input position. A zero-length
// input yields an empty (non-nil) result, not an error.
func (e *Encoder) Encode(ids []int) ([][]float64, error) {
	states, _, err := e.encode(ids, false)
	return states, err
}

// EncodeForBackward is Encode keeping the intermediates needed to
// backpropagate through the whole sequence.
func (e *Encoder) EncodeForBackward(ids []int) ([][]float64, *EncodeCache, error) {
	return e.encode(ids, true)
}

func (e *Encoder) encode(ids []int, keep bool) ([][]float64, *EncodeCache, error) {
	h := e.config.HiddenDim
	states := make([][]float64, len(ids))
	if len(ids) == 0 {
		return states, &EncodeCache{}, nil
	}

	xs := make([][]float64, len(ids))
	for t, id := range ids {
		if id < 0 || id >= e.config.VocabSize {
			return nil, nil, fmt.Errorf("token id %d outside vocabulary of size %d", id, e.config.VocabSize)
		}
		xs[t] = e.embed.Lookup(id)
	}

	fh := make([][]float64, len(ids))
	prev := make([]float64, h)
	for t := 0; t < len(ids); t++ {
		prev = e.fwd.step(xs[t], prev)
		fh[t] = prev
	}

	bh := make([][]float64, len(ids))
	prev = make([]float64, h)
	for t := len(ids) - 1; t >= 0; t-- {
		prev = e.bwd.step(xs[t], prev)
		bh[t] = prev
	}

	for t := range ids {
		s := make([]float64, 2*h)
		copy(s[:h], fh[t])
		copy(s[h:], bh[t])
		states[t] = s
	}

	if !keep {
		return states, nil, nil
	}
	return states, &EncodeCache{ids: ids, xs: xs, fh: fh, bh: bh}, nil
}

// Backward runs full backpropagation through time over the cached
// sequence. dStates must hold one 2H-wide gradient per position;
// gradients accumulate into the encoder parameters.
func (e *Encoder) Backward(cache *EncodeCache, dStates [][]float64) {
	h := e.config.HiddenDim
	T := len(cache.ids)
	if T == 0 {
		return
	}

	dxs := make([][]float64, T)
	for t := range dxs {
		dxs[t] = make([]float64, e.config.EmbeddingDim)
	}

	// Left-to-right pass: walk time backwards carrying dh.
	carry := make([]float64, h)
	for t := T - 1; t >= 0; t-- {
		dh := append([]float64(nil), dStates[t][:h]...)
		floats.Add(dh, carry)
		da := make([]float64, h)
		for i, v := range cache.fh[t] {
			da[i] = dh[i] * nn.TanhDeriv(v)
		}
		floats.Add(dxs[t], e.fwd.wx.Backward(cache.xs[t], da))
		if t > 0 {
			carry = e.fwd.wh.Backward(cache.fh[t-1], da)
		} else {
			e.fwd.wh.Backward(make([]float64, h), da)
		}
	}

	// Right-to-left pass: walk time forwards carrying dh.
	carry = make([]float64, h)
	for t := 0; t < T; t++ {
		dh := append([]float64(nil), dStates[t][h:]...)
		floats.Add(dh, carry)
		da := make([]float64, h)
		for i, v := range cache.bh[t] {
			da[i] = dh[i] * nn.TanhDeriv(v)
		}
		floats.Add(dxs[t], e.bwd.wx.Backward(cache.xs[t], da))
		if t < T-1 {
			carry = e.bwd.wh.Backward(cache.bh[t+1], da)
		} else {
			e.bwd.wh.Backward(make([]float64, h), da)
		}
	}

	for t, id := range cache.ids {
		e.embed.Accumulate(id, dxs[t])
	}
}

// Params exposes every encoder parameter for optimization and snapshots.
func (e *Encoder) Params() []*nn.Param {
	params := e.embed.Params()
	params = append(params, e.fwd.wx.Params()...)
	params = append(params, e.fwd.wh.Params()...)
	params = append(params, e.bwd.wx.Params()...)
	params = append(params, e.bwd.wh.Params()...)
	return params
}

// EncoderState is the serializable form of an Encoder.
type EncoderState struct {
	Config EncoderConfig     `json:"config"`
	Embed  nn.EmbeddingState `json:"embed"`
	FwdWx  nn.DenseState     `json:"fwd_wx"`
	FwdWh  nn.DenseState     `json:"fwd_wh"`
	BwdWx  nn.DenseState     `json:"bwd_wx"`
	BwdWh  nn.DenseState     `json:"bwd_wh"`
}

// State returns a deep copy of the encoder parameters.
func (e *Encoder) State() EncoderState {
	return EncoderState{
		Config: e.config,
		Embed:  e.embed.State(),
		FwdWx:  e.fwd.wx.State(),
		FwdWh:  e.fwd.wh.State(),
		BwdWx:  e.bwd.wx.State(),
		BwdWh:  e.bwd.wh.State(),
	}
}

// EncoderFromState reconstructs an Encoder from its serialized form.
func EncoderFromState(st EncoderState) (*Encoder, error) {
	if err := st.Config.Validate(); err != nil {
		return nil, fmt.Errorf("encoder config: %w", err)
	}
	embed, err := nn.EmbeddingFromState(st.Embed)
	if err != nil {
		return nil, fmt.Errorf("embedding table: %w", err)
	}
	load := func(name string, ds nn.DenseState) (*nn.Dense, error) {
		d, err := nn.DenseFromState(ds)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}
	fwx, err := load("forward input weights", st.FwdWx)
	if err != nil {
		return nil, err
	}
	fwh, err := load("forward recurrent weights", st.FwdWh)
	if err != nil {
		return nil, err
	}
	bwx, err := load("backward input weights", st.BwdWx)
	if err != nil {
		return nil, err
	}
	bwh, err := load("backward recurrent weights", st.BwdWh)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		config: st.Config,
		embed:  embed,
		fwd:    &recurrentCell{wx: fwx, wh: fwh},
		bwd:    &recurrentCell{wx: bwx, wh: bwh},
	}, nil
}
