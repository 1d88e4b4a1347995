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
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/encoding"
	"github.com/lexfly/coref/lib/nn"
	"github.com/lexfly/coref/lib/pairs"
	"github.com/lexfly/coref/lib/spans"
)

// scriptedObjective replays a fixed validation-loss sequence so the
// early-stopping state machine can be tested in isolation. Its single
// parameter drifts every batch, which makes snapshot restoration
// observable.
type scriptedObjective struct {
	valLosses []float64
	epoch     int
	param     *nn.Param

	// valueAtEpoch[i] is the parameter value when Validate ran for
	// epoch i+1, i.e. the value a snapshot taken that epoch captures.
	valueAtEpoch []float64
}

func newScriptedObjective(valLosses []float64) *scriptedObjective {
	return &scriptedObjective{
		valLosses: valLosses,
		param:     &nn.Param{Name: "w", Value: []float64{0}, Grad: []float64{0}},
	}
}

func (s *scriptedObjective) NumExamples() int      { return 4 }
func (s *scriptedObjective) Params() []*nn.Param   { return []*nn.Param{s.param} }
func (s *scriptedObjective) Batch([]int) (float64, error) {
	s.param.Grad[0] = 1 // drift
	return 0.5, nil
}

func (s *scriptedObjective) Validate() (float64, error) {
	loss := s.valLosses[s.epoch]
	s.epoch++
	s.valueAtEpoch = append(s.valueAtEpoch, s.param.Value[0])
	return loss, nil
}

func TestLoopEarlyStopping(t *testing.T) {
	// Losses improve, improve, then regress twice: with patience 2 the
	// loop must stop after epoch 4 and restore the epoch-2 parameters.
	obj := newScriptedObjective([]float64{0.9, 0.8, 0.85, 0.87, 0.7})
	loop, err := NewLoop(Config{
		Epochs:       10,
		BatchSize:    2,
		LearningRate: 0.1,
		Patience:     2,
		Seed:         1,
		ClipNorm:     5.0,
		UseSGD:       true,
	}, zap.NewNop())
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), obj)
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.Equal(t, 4, res.EpochsRun)
	assert.Equal(t, 2, res.BestEpoch)
	assert.Len(t, res.ValidationLoss, 4)
	assert.Equal(t, []float64{0.9, 0.8, 0.85, 0.87}, res.ValidationLoss)

	// Parameters must be back at their epoch-2 state, not the last one.
	require.Len(t, obj.valueAtEpoch, 4)
	assert.Equal(t, obj.valueAtEpoch[1], obj.param.Value[0])
	assert.NotEqual(t, obj.valueAtEpoch[3], obj.param.Value[0])
}

func TestLoopRunsAllEpochsWhenImproving(t *testing.T) {
	obj := newScriptedObjective([]float64{0.9, 0.8, 0.7, 0.6, 0.5})
	loop, err := NewLoop(Config{
		Epochs:       5,
		BatchSize:    2,
		LearningRate: 0.1,
		Patience:     2,
		Seed:         1,
		UseSGD:       true,
	}, nil)
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), obj)
	require.NoError(t, err)

	assert.False(t, res.Stopped)
	assert.Equal(t, 5, res.EpochsRun)
	assert.Equal(t, 5, res.BestEpoch)
}

func TestLoopContextCancellation(t *testing.T) {
	obj := newScriptedObjective([]float64{0.9, 0.8, 0.7})
	loop, err := NewLoop(DefaultConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = loop.Run(ctx, obj)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }, true},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"negative learning rate", func(c *Config) { c.LearningRate = -1 }, true},
		{"zero patience", func(c *Config) { c.Patience = 0 }, true},
		{"negative clip norm", func(c *Config) { c.ClipNorm = -1 }, true},
		{"clipping disabled", func(c *Config) { c.ClipNorm = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestPairwiseModel(t *testing.T) *PairwiseModel {
	t.Helper()
	vocab := encoding.BuildVocabulary(
		[]string{"alice", "met", "bob", "she", "smiled", "he", "left", "the", "manager"},
	)
	rng := rand.New(rand.NewSource(7))
	enc, err := encoding.NewEncoder(encoding.EncoderConfig{
		VocabSize:    vocab.Size(),
		EmbeddingDim: 6,
		HiddenDim:    5,
	}, rng)
	require.NoError(t, err)
	builder, err := encoding.NewSpanBuilder(4, 3, rng)
	require.NoError(t, err)
	scorer, err := pairs.NewScorer(builder.Dim(enc.StateDim()), 8, rng)
	require.NoError(t, err)
	return &PairwiseModel{Vocab: vocab, Encoder: enc, Builder: builder, Scorer: scorer}
}

func testPairCorpus() PairCorpus {
	pos := PairExample{
		A: MentionExample{
			Window: []string{"alice", "met", "bob"},
			Index:  0, Width: 1, DocTokenIndex: 0, SentenceIndex: 0, Text: "alice",
		},
		B: MentionExample{
			Window: []string{"she", "smiled"},
			Index:  0, Width: 1, DocTokenIndex: 3, SentenceIndex: 1, Text: "she",
		},
		Label:  1.0,
		DocLen: 5,
	}
	neg := PairExample{
		A: MentionExample{
			Window: []string{"alice", "met", "bob"},
			Index:  2, Width: 1, DocTokenIndex: 2, SentenceIndex: 0, Text: "bob",
		},
		B: MentionExample{
			Window: []string{"she", "smiled"},
			Index:  0, Width: 1, DocTokenIndex: 3, SentenceIndex: 1, Text: "she",
		},
		Label:  0.0,
		DocLen: 5,
	}
	return PairCorpus{
		Train:      []PairExample{pos, neg},
		Validation: []PairExample{pos, neg},
	}
}

func TestPairwiseObjectiveTrainingReducesLoss(t *testing.T) {
	model := newTestPairwiseModel(t)
	obj, err := NewPairwiseObjective(model, testPairCorpus(), 0, 11)
	require.NoError(t, err)

	before, err := obj.Validate()
	require.NoError(t, err)

	loop, err := NewLoop(Config{
		Epochs:       30,
		BatchSize:    2,
		LearningRate: 0.05,
		Patience:     30,
		Seed:         11,
		ClipNorm:     5.0,
		UseSGD:       true,
	}, zap.NewNop())
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), obj)
	require.NoError(t, err)

	after, err := obj.Validate()
	require.NoError(t, err)
	assert.Less(t, after, before)
	assert.Greater(t, res.BestEpoch, 0)
}

func TestPairwiseObjectiveBatchAccumulatesGradients(t *testing.T) {
	model := newTestPairwiseModel(t)
	obj, err := NewPairwiseObjective(model, testPairCorpus(), 0, 3)
	require.NoError(t, err)

	params := obj.Params()
	nn.ZeroGrad(params)
	loss, err := obj.Batch([]int{0, 1})
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)

	var norm float64
	for _, p := range params {
		for _, g := range p.Grad {
			norm += g * g
		}
	}
	assert.Greater(t, norm, 0.0, "batch must produce non-zero gradients")
}

func TestPairwiseObjectiveDeterministicAcrossRuns(t *testing.T) {
	run := func() []float64 {
		model := newTestPairwiseModel(t)
		obj, err := NewPairwiseObjective(model, testPairCorpus(), 0.2, 11)
		require.NoError(t, err)
		loop, err := NewLoop(Config{
			Epochs:       5,
			BatchSize:    1,
			LearningRate: 0.01,
			Patience:     5,
			Seed:         11,
			ClipNorm:     5.0,
		}, nil)
		require.NoError(t, err)
		res, err := loop.Run(context.Background(), obj)
		require.NoError(t, err)
		return res.TrainLoss
	}

	assert.Equal(t, run(), run(), "same seed must reproduce the same loss trace")
}

func TestPairwiseObjectiveRejectsBadInput(t *testing.T) {
	model := newTestPairwiseModel(t)

	_, err := NewPairwiseObjective(nil, testPairCorpus(), 0, 1)
	assert.Error(t, err)

	_, err = NewPairwiseObjective(model, PairCorpus{}, 0, 1)
	assert.Error(t, err)

	_, err = NewPairwiseObjective(model, testPairCorpus(), 1.0, 1)
	assert.Error(t, err, "dropout of 1 would zero every activation")

	corrupt := testPairCorpus()
	corrupt.Train[0].Label = 0.5
	_, err = NewPairwiseObjective(model, corrupt, 0, 1)
	assert.Error(t, err)
}

func newTestJointModel(t *testing.T) *JointModel {
	t.Helper()
	vocab := encoding.BuildVocabulary(
		[]string{"alice", "met", "bob", "she", "smiled", "he", "left"},
	)
	rng := rand.New(rand.NewSource(13))
	enc, err := encoding.NewEncoder(encoding.EncoderConfig{
		VocabSize:    vocab.Size(),
		EmbeddingDim: 6,
		HiddenDim:    5,
	}, rng)
	require.NoError(t, err)
	builder, err := encoding.NewSpanBuilder(3, 3, rng)
	require.NoError(t, err)
	reprDim := builder.Dim(enc.StateDim())
	spanScorer, err := spans.NewScorer(reprDim, 8, rng)
	require.NoError(t, err)
	pairScorer, err := pairs.NewScorer(reprDim, 8, rng)
	require.NoError(t, err)
	return &JointModel{
		Vocab:      vocab,
		Encoder:    enc,
		Builder:    builder,
		SpanScorer: spanScorer,
		PairScorer: pairScorer,
	}
}

func testJointCorpus() JointCorpus {
	span := SpanLabeledExample{
		Tokens:    []string{"alice", "met", "bob"},
		GoldSpans: [][2]int{{0, 0}, {2, 2}},
	}
	ante := AntecedentExample{
		Tokens: []string{"alice", "met", "bob", "she", "smiled"},
		SpanA:  [2]int{0, 0},
		SpanB:  [2]int{3, 3},
		Label:  1.0,
	}
	return JointCorpus{
		SpanTrain:            []SpanLabeledExample{span},
		SpanValidation:       []SpanLabeledExample{span},
		AntecedentTrain:      []AntecedentExample{ante},
		AntecedentValidation: []AntecedentExample{ante},
	}
}

func TestJointObjectiveTrainingReducesLoss(t *testing.T) {
	model := newTestJointModel(t)
	obj, err := NewJointObjective(model, testJointCorpus(), DefaultJointConfig(), 5)
	require.NoError(t, err)

	assert.Equal(t, 2, obj.NumExamples())

	before, err := obj.Validate()
	require.NoError(t, err)

	loop, err := NewLoop(Config{
		Epochs:       30,
		BatchSize:    2,
		LearningRate: 0.05,
		Patience:     30,
		Seed:         5,
		ClipNorm:     5.0,
		UseSGD:       true,
	}, zap.NewNop())
	require.NoError(t, err)
	_, err = loop.Run(context.Background(), obj)
	require.NoError(t, err)

	after, err := obj.Validate()
	require.NoError(t, err)
	assert.Less(t, after, before)
}

func TestJointObjectiveSharedEncoderGradients(t *testing.T) {
	// A span-only batch must still place gradients on the shared
	// encoder, not just on the span scorer.
	model := newTestJointModel(t)
	obj, err := NewJointObjective(model, testJointCorpus(), DefaultJointConfig(), 5)
	require.NoError(t, err)

	nn.ZeroGrad(obj.Params())
	_, err = obj.Batch([]int{0}) // span example
	require.NoError(t, err)

	var encNorm float64
	for _, p := range model.Encoder.Params() {
		for _, g := range p.Grad {
			encNorm += g * g
		}
	}
	assert.Greater(t, encNorm, 0.0)
}

func TestJointConfigValidate(t *testing.T) {
	cfg := DefaultJointConfig()
	assert.NoError(t, cfg.Validate())

	cfg.SpanWeight = -1
	assert.Error(t, cfg.Validate())

	cfg = JointConfig{SpanWeight: 0, AntecedentWeight: 0}
	assert.Error(t, cfg.Validate())

	cfg = DefaultJointConfig()
	cfg.Dropout = 1.0
	assert.Error(t, cfg.Validate())
}
