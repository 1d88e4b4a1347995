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
	"github.com/lexfly/coref/lib/spans"
)

// JointModel bundles the components end-to-end training optimizes as
// one network: encoder, span builder, span scorer, and pair scorer.
type JointModel struct {
	Vocab      *encoding.Vocabulary
	Encoder    *encoding.Encoder
	Builder    *encoding.SpanBuilder
	SpanScorer *spans.Scorer
	PairScorer *pairs.Scorer
}

// Params returns every trainable parameter of the model.
func (m *JointModel) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, m.Encoder.Params()...)
	ps = append(ps, m.Builder.Params()...)
	ps = append(ps, m.SpanScorer.Params()...)
	ps = append(ps, m.PairScorer.Params()...)
	return ps
}

// JointConfig weights the two loss terms of end-to-end training.
type JointConfig struct {
	// SpanWeight scales the span-detection loss.
	SpanWeight float64

	// AntecedentWeight scales the antecedent-linking loss.
	AntecedentWeight float64

	// Dropout is applied inside both scorers during training.
	Dropout float64
}

// DefaultJointConfig returns the default loss weighting.
func DefaultJointConfig() JointConfig {
	return JointConfig{SpanWeight: 0.3, AntecedentWeight: 0.7}
}

// Validate rejects degenerate weightings.
func (c JointConfig) Validate() error {
	if c.SpanWeight < 0 || c.AntecedentWeight < 0 {
		return fmt.Errorf("loss weights must be non-negative, got span %v antecedent %v",
			c.SpanWeight, c.AntecedentWeight)
	}
	if c.SpanWeight == 0 && c.AntecedentWeight == 0 {
		return fmt.Errorf("at least one loss weight must be positive")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %v", c.Dropout)
	}
	return nil
}

// JointObjective trains all components of a JointModel with a weighted
// sum of span-detection and antecedent-linking cross-entropy, so
// gradients from both tasks flow into the shared encoder.
type JointObjective struct {
	model  *JointModel
	corpus JointCorpus
	config JointConfig
	rng    *rand.Rand
}

// NewJointObjective validates the corpus and config and creates the
// objective.
func NewJointObjective(model *JointModel, corpus JointCorpus, config JointConfig, seed int64) (*JointObjective, error) {
	if model == nil {
		return nil, fmt.Errorf("nil model")
	}
	if err := corpus.Validate(); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &JointObjective{
		model:  model,
		corpus: corpus,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// NumExamples counts both task's training examples; indices below the
// span-split size address span examples, the rest antecedent examples.
func (o *JointObjective) NumExamples() int {
	return len(o.corpus.SpanTrain) + len(o.corpus.AntecedentTrain)
}

// Params returns every trainable parameter.
func (o *JointObjective) Params() []*nn.Param { return o.model.Params() }

// Batch accumulates weighted gradients for the selected examples and
// returns their mean weighted loss.
func (o *JointObjective) Batch(indices []int) (float64, error) {
	if len(indices) == 0 {
		return 0, fmt.Errorf("empty batch")
	}
	var total float64
	scale := 1.0 / float64(len(indices))
	for _, idx := range indices {
		var loss float64
		var err error
		switch {
		case idx < 0 || idx >= o.NumExamples():
			return 0, fmt.Errorf("example index %d out of range", idx)
		case idx < len(o.corpus.SpanTrain):
			loss, err = o.spanExample(o.corpus.SpanTrain[idx], scale)
		default:
			loss, err = o.antecedentExample(o.corpus.AntecedentTrain[idx-len(o.corpus.SpanTrain)], scale)
		}
		if err != nil {
			return 0, fmt.Errorf("example %d: %w", idx, err)
		}
		total += loss
	}
	return total * scale, nil
}

// spanExample scores every enumerable span of the sequence against its
// gold label and backpropagates the weighted mean loss.
func (o *JointObjective) spanExample(ex SpanLabeledExample, gradScale float64) (float64, error) {
	states, cache, err := o.model.Encoder.EncodeForBackward(o.model.Vocab.IDs(ex.Tokens))
	if err != nil {
		return 0, err
	}
	gold := make(map[[2]int]bool, len(ex.GoldSpans))
	for _, sp := range ex.GoldSpans {
		gold[sp] = true
	}
	candidates := spans.Enumerate(len(ex.Tokens), o.model.Builder.MaxWidth())
	if len(candidates) == 0 {
		return 0, nil
	}

	dStates := make([][]float64, len(states))
	for i := range dStates {
		dStates[i] = make([]float64, len(states[i]))
	}

	var total float64
	spanScale := gradScale * o.config.SpanWeight / float64(len(candidates))
	for _, sp := range candidates {
		repr, err := o.model.Builder.Build(states, sp.Start, sp.End)
		if err != nil {
			return 0, err
		}
		p, ffnCache, err := o.model.SpanScorer.ScoreForTraining(repr, o.config.Dropout, o.rng)
		if err != nil {
			return 0, err
		}
		label := 0.0
		if gold[[2]int{sp.Start, sp.End}] {
			label = 1.0
		}
		loss, dp := nn.BCE(p, label)
		total += loss

		dRepr := o.model.SpanScorer.Backward(ffnCache, dp*spanScale)
		o.model.Builder.Backward(dStates, sp.Start, sp.End, dRepr)
	}
	o.model.Encoder.Backward(cache, dStates)
	return total / float64(len(candidates)) * o.config.SpanWeight, nil
}

// antecedentExample scores one labeled span pair inside a shared
// encoding and backpropagates the weighted loss.
func (o *JointObjective) antecedentExample(ex AntecedentExample, gradScale float64) (float64, error) {
	states, cache, err := o.model.Encoder.EncodeForBackward(o.model.Vocab.IDs(ex.Tokens))
	if err != nil {
		return 0, err
	}
	reprA, err := o.model.Builder.Build(states, ex.SpanA[0], ex.SpanA[1])
	if err != nil {
		return 0, err
	}
	reprB, err := o.model.Builder.Build(states, ex.SpanB[0], ex.SpanB[1])
	if err != nil {
		return 0, err
	}
	a := pairs.Candidate{Start: ex.SpanA[0], End: ex.SpanA[1], Representation: reprA}
	b := pairs.Candidate{Start: ex.SpanB[0], End: ex.SpanB[1], Representation: reprB}

	p, pairCache, err := o.model.PairScorer.ScorePairForTraining(a, b, len(ex.Tokens), o.config.Dropout, o.rng)
	if err != nil {
		return 0, err
	}
	loss, dp := nn.BCE(p, ex.Label)

	dStates := make([][]float64, len(states))
	for i := range dStates {
		dStates[i] = make([]float64, len(states[i]))
	}
	dA, dB := o.model.PairScorer.Backward(pairCache, dp*gradScale*o.config.AntecedentWeight)
	o.model.Builder.Backward(dStates, ex.SpanA[0], ex.SpanA[1], dA)
	o.model.Builder.Backward(dStates, ex.SpanB[0], ex.SpanB[1], dB)
	o.model.Encoder.Backward(cache, dStates)
	return loss * o.config.AntecedentWeight, nil
}

// Validate returns the weighted mean held-out loss of both tasks,
// without dropout.
func (o *JointObjective) Validate() (float64, error) {
	var spanLoss float64
	for i, ex := range o.corpus.SpanValidation {
		loss, err := o.spanValidationLoss(ex)
		if err != nil {
			return 0, fmt.Errorf("span validation example %d: %w", i, err)
		}
		spanLoss += loss
	}
	spanLoss /= float64(len(o.corpus.SpanValidation))

	var anteLoss float64
	for i, ex := range o.corpus.AntecedentValidation {
		loss, err := o.antecedentValidationLoss(ex)
		if err != nil {
			return 0, fmt.Errorf("antecedent validation example %d: %w", i, err)
		}
		anteLoss += loss
	}
	anteLoss /= float64(len(o.corpus.AntecedentValidation))

	return o.config.SpanWeight*spanLoss + o.config.AntecedentWeight*anteLoss, nil
}

func (o *JointObjective) spanValidationLoss(ex SpanLabeledExample) (float64, error) {
	states, err := o.model.Encoder.Encode(o.model.Vocab.IDs(ex.Tokens))
	if err != nil {
		return 0, err
	}
	gold := make(map[[2]int]bool, len(ex.GoldSpans))
	for _, sp := range ex.GoldSpans {
		gold[sp] = true
	}
	candidates := spans.Enumerate(len(ex.Tokens), o.model.Builder.MaxWidth())
	if len(candidates) == 0 {
		return 0, nil
	}
	var total float64
	for _, sp := range candidates {
		repr, err := o.model.Builder.Build(states, sp.Start, sp.End)
		if err != nil {
			return 0, err
		}
		p, err := o.model.SpanScorer.Score(repr)
		if err != nil {
			return 0, err
		}
		label := 0.0
		if gold[[2]int{sp.Start, sp.End}] {
			label = 1.0
		}
		loss, _ := nn.BCE(p, label)
		total += loss
	}
	return total / float64(len(candidates)), nil
}

func (o *JointObjective) antecedentValidationLoss(ex AntecedentExample) (float64, error) {
	states, err := o.model.Encoder.Encode(o.model.Vocab.IDs(ex.Tokens))
	if err != nil {
		return 0, err
	}
	reprA, err := o.model.Builder.Build(states, ex.SpanA[0], ex.SpanA[1])
	if err != nil {
		return 0, err
	}
	reprB, err := o.model.Builder.Build(states, ex.SpanB[0], ex.SpanB[1])
	if err != nil {
		return 0, err
	}
	p, err := o.model.PairScorer.ScorePair(
		pairs.Candidate{Start: ex.SpanA[0], End: ex.SpanA[1], Representation: reprA},
		pairs.Candidate{Start: ex.SpanB[0], End: ex.SpanB[1], Representation: reprB},
		len(ex.Tokens))
	if err != nil {
		return 0, err
	}
	loss, _ := nn.BCE(p, ex.Label)
	return loss, nil
}
