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

package training

import (
	"fmt"
	"math/rand"

	"github.com/lexfly/coref/lib/encoding"
	"github.com/lexfly/coref/lib/nn"
	"github.com/lexfly/coref/lib/pairs"
)

// PairwiseModel bundles the components the pairwise objective trains
// together: the contextual encoder, the span representation builder,
// and the pair scorer.
type PairwiseModel struct {
	Vocab   *encoding.Vocabulary
	Encoder *encoding.Encoder
	Builder *encoding.SpanBuilder
	Scorer  *pairs.Scorer
}

// Params returns every trainable parameter of the model.
func (m *PairwiseModel) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, m.Encoder.Params()...)
	ps = append(ps, m.Builder.Params()...)
	ps = append(ps, m.Scorer.Params()...)
	return ps
}

// PairwiseObjective trains a PairwiseModel on labeled mention pairs
// with binary cross-entropy, backpropagating through the scorer, the
// span builder, and the encoder.
type PairwiseObjective struct {
	model   *PairwiseModel
	corpus  PairCorpus
	dropout float64
	rng     *rand.Rand
}

// NewPairwiseObjective validates the corpus and creates the objective.
func NewPairwiseObjective(model *PairwiseModel, corpus PairCorpus, dropout float64, seed int64) (*PairwiseObjective, error) {
	if model == nil {
		return nil, fmt.Errorf("nil model")
	}
	if err := corpus.Validate(); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %v", dropout)
	}
	return &PairwiseObjective{
		model:   model,
		corpus:  corpus,
		dropout: dropout,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// NumExamples returns the training-split size.
func (o *PairwiseObjective) NumExamples() int { return len(o.corpus.Train) }

// Params returns every trainable parameter.
func (o *PairwiseObjective) Params() []*nn.Param { return o.model.Params() }

// Batch accumulates gradients for the selected training examples and
// returns their mean loss.
func (o *PairwiseObjective) Batch(indices []int) (float64, error) {
	if len(indices) == 0 {
		return 0, fmt.Errorf("empty batch")
	}
	var total float64
	scale := 1.0 / float64(len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(o.corpus.Train) {
			return 0, fmt.Errorf("example index %d out of range", idx)
		}
		loss, err := o.example(o.corpus.Train[idx], scale)
		if err != nil {
			return 0, fmt.Errorf("example %d: %w", idx, err)
		}
		total += loss
	}
	return total * scale, nil
}

// example runs one labeled pair forward and backward. gradScale
// averages the per-example gradient over the batch.
func (o *PairwiseObjective) example(ex PairExample, gradScale float64) (float64, error) {
	encA, err := o.encodeMention(ex.A)
	if err != nil {
		return 0, fmt.Errorf("mention a: %w", err)
	}
	encB, err := o.encodeMention(ex.B)
	if err != nil {
		return 0, fmt.Errorf("mention b: %w", err)
	}

	p, cache, err := o.model.Scorer.ScorePairForTraining(encA.candidate, encB.candidate, ex.DocLen, o.dropout, o.rng)
	if err != nil {
		return 0, err
	}
	loss, dp := nn.BCE(p, ex.Label)

	dA, dB := o.model.Scorer.Backward(cache, dp*gradScale)
	o.backMention(encA, dA)
	o.backMention(encB, dB)
	return loss, nil
}

// encodedMention carries the forward caches needed to backpropagate a
// mention representation into the encoder and span builder.
type encodedMention struct {
	candidate pairs.Candidate
	states    [][]float64
	cache     *encoding.EncodeCache
	start     int
	end       int
}

func (o *PairwiseObjective) encodeMention(m MentionExample) (*encodedMention, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	ids := o.model.Vocab.IDs(m.Window)
	states, cache, err := o.model.Encoder.EncodeForBackward(ids)
	if err != nil {
		return nil, err
	}
	start := m.Index
	end := m.Index + m.Width - 1
	repr, err := o.model.Builder.Build(states, start, end)
	if err != nil {
		return nil, err
	}
	return &encodedMention{
		candidate: pairs.Candidate{
			Start:          m.DocTokenIndex,
			End:            m.DocTokenIndex + m.Width - 1,
			SentenceIndex:  m.SentenceIndex,
			Text:           m.Text,
			Representation: repr,
		},
		states: states,
		cache:  cache,
		start:  start,
		end:    end,
	}, nil
}

func (o *PairwiseObjective) backMention(enc *encodedMention, dRepr []float64) {
	dStates := make([][]float64, len(enc.states))
	for i := range dStates {
		dStates[i] = make([]float64, len(enc.states[i]))
	}
	o.model.Builder.Backward(dStates, enc.start, enc.end, dRepr)
	o.model.Encoder.Backward(enc.cache, dStates)
}

// Validate returns the mean loss over the held-out split without
// dropout and without touching gradients.
func (o *PairwiseObjective) Validate() (float64, error) {
	var total float64
	for i, ex := range o.corpus.Validation {
		loss, err := o.validationLoss(ex)
		if err != nil {
			return 0, fmt.Errorf("validation example %d: %w", i, err)
		}
		total += loss
	}
	return total / float64(len(o.corpus.Validation)), nil
}

func (o *PairwiseObjective) validationLoss(ex PairExample) (float64, error) {
	a, err := o.inferenceCandidate(ex.A)
	if err != nil {
		return 0, err
	}
	b, err := o.inferenceCandidate(ex.B)
	if err != nil {
		return 0, err
	}
	p, err := o.model.Scorer.ScorePair(a, b, ex.DocLen)
	if err != nil {
		return 0, err
	}
	loss, _ := nn.BCE(p, ex.Label)
	return loss, nil
}

func (o *PairwiseObjective) inferenceCandidate(m MentionExample) (pairs.Candidate, error) {
	if err := m.Validate(); err != nil {
		return pairs.Candidate{}, err
	}
	states, err := o.model.Encoder.Encode(o.model.Vocab.IDs(m.Window))
	if err != nil {
		return pairs.Candidate{}, err
	}
	repr, err := o.model.Builder.Build(states, m.Index, m.Index+m.Width-1)
	if err != nil {
		return pairs.Candidate{}, err
	}
	return pairs.Candidate{
		Start:          m.DocTokenIndex,
		End:            m.DocTokenIndex + m.Width - 1,
		SentenceIndex:  m.SentenceIndex,
		Text:           m.Text,
		Representation: repr,
	}, nil
}
