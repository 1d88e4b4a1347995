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

// Package training implements the supervised loop shared by both
// resolution strategies: seeded shuffling, fixed-size batches, gradient
// updates in a deterministic order, per-epoch validation, and
// patience-based early stopping that returns the best snapshot rather
// than the last one.
package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/nn"
)

// Config holds the loop hyperparameters.
type Config struct {
	// Epochs is the maximum number of passes over the training set.
	Epochs int

	// BatchSize is the number of examples per parameter update.
	BatchSize int

	// LearningRate for the optimizer.
	LearningRate float64

	// Patience is how many epochs without validation improvement are
	// tolerated before stopping early.
	Patience int

	// Seed drives shuffling, initialization, and dropout.
	Seed int64

	// ClipNorm bounds the global gradient norm before each update.
	// Zero disables clipping.
	ClipNorm float64

	// UseSGD selects plain SGD instead of the default Adam.
	UseSGD bool
}

// DefaultConfig returns the default loop hyperparameters.
func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		BatchSize:    32,
		LearningRate: 1e-3,
		Patience:     3,
		Seed:         1,
		ClipNorm:     5.0,
	}
}

// Validate rejects out-of-range hyperparameters at construction time.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.Patience <= 0 {
		return fmt.Errorf("patience must be positive, got %d", c.Patience)
	}
	if c.ClipNorm < 0 {
		return fmt.Errorf("clip norm must be non-negative, got %v", c.ClipNorm)
	}
	return nil
}

// Objective is the model-specific part of one training run: it computes
// losses and accumulates gradients; the Loop owns shuffling, batching,
// the optimizer, and early stopping.
type Objective interface {
	// NumExamples returns the training-set size.
	NumExamples() int

	// Batch runs forward and backward over the given example indices,
	// accumulating gradients into Params. It returns the mean loss.
	Batch(indices []int) (float64, error)

	// Validate returns the held-out loss without touching parameters.
	Validate() (float64, error)

	// Params exposes every trainable parameter of the objective.
	Params() []*nn.Param
}

// Result reports one completed training run.
type Result struct {
	// Best is the snapshot of the epoch with the lowest validation
	// loss. Run also restores it into the model parameters.
	Best nn.Snapshot

	// BestEpoch is the 1-based epoch Best was taken at.
	BestEpoch int

	// EpochsRun is how many epochs actually executed.
	EpochsRun int

	// Stopped reports whether patience ran out before Epochs.
	Stopped bool

	TrainLoss      []float64
	ValidationLoss []float64
}

// Loop drives training for any Objective.
type Loop struct {
	config Config
	logger *zap.Logger
}

// NewLoop validates the config and creates a training loop.
func NewLoop(config Config, logger *zap.Logger) (*Loop, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{config: config, logger: logger.Named("trainer")}, nil
}

// Run executes the training state machine: per epoch, shuffle, batch,
// update, then validate; snapshot on improvement; stop once Patience
// epochs pass without one. The best snapshot (not the final state) is
// restored into the objective's parameters before returning.
func (l *Loop) Run(ctx context.Context, obj Objective) (*Result, error) {
	params := obj.Params()
	var opt nn.Optimizer
	if l.config.UseSGD {
		opt = &nn.SGD{LR: l.config.LearningRate}
	} else {
		opt = nn.NewAdam(l.config.LearningRate)
	}
	rng := rand.New(rand.NewSource(l.config.Seed))

	indices := make([]int, obj.NumExamples())
	for i := range indices {
		indices[i] = i
	}

	res := &Result{
		Best:      nn.TakeSnapshot(params),
		BestEpoch: 0,
	}
	bestLoss := math.Inf(1)
	badEpochs := 0

	for epoch := 1; epoch <= l.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			nn.RestoreSnapshot(params, res.Best)
			return res, err
		}

		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var epochLoss float64
		var batches int
		for start := 0; start < len(indices); start += l.config.BatchSize {
			end := start + l.config.BatchSize
			if end > len(indices) {
				end = len(indices)
			}
			nn.ZeroGrad(params)
			loss, err := obj.Batch(indices[start:end])
			if err != nil {
				nn.RestoreSnapshot(params, res.Best)
				return res, fmt.Errorf("epoch %d batch at %d: %w", epoch, start, err)
			}
			if l.config.ClipNorm > 0 {
				nn.ClipGradNorm(params, l.config.ClipNorm)
			}
			opt.Step(params)
			epochLoss += loss
			batches++
		}
		if batches > 0 {
			epochLoss /= float64(batches)
		}

		valLoss, err := obj.Validate()
		if err != nil {
			nn.RestoreSnapshot(params, res.Best)
			return res, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}

		res.EpochsRun = epoch
		res.TrainLoss = append(res.TrainLoss, epochLoss)
		res.ValidationLoss = append(res.ValidationLoss, valLoss)

		improved := valLoss < bestLoss
		if improved {
			bestLoss = valLoss
			res.Best = nn.TakeSnapshot(params)
			res.BestEpoch = epoch
			badEpochs = 0
		} else {
			badEpochs++
		}

		l.logger.Info("Epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", epochLoss),
			zap.Float64("validation_loss", valLoss),
			zap.Bool("improved", improved),
			zap.Int("bad_epochs", badEpochs))

		if badEpochs >= l.config.Patience {
			res.Stopped = true
			l.logger.Info("Early stop: patience exhausted",
				zap.Int("patience", l.config.Patience),
				zap.Int("best_epoch", res.BestEpoch),
				zap.Float64("best_validation_loss", bestLoss))
			break
		}
	}

	nn.RestoreSnapshot(params, res.Best)
	return res, nil
}
