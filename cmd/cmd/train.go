// Copyright 2026 Lexfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/bundle"
	"github.com/lexfly/coref/lib/encoding"
	"github.com/lexfly/coref/lib/pairs"
	"github.com/lexfly/coref/lib/spans"
	"github.com/lexfly/coref/lib/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a coreference model",
}

var trainPairsCmd = &cobra.Command{
	Use:   "pairs <corpus.json>",
	Short: "Train a pairwise model on labeled mention pairs",
	Long: `Train the encoder, span representation builder, and pair scorer on a
corpus of labeled mention pairs, then save the result as a bundle.

The corpus file holds a JSON object with "train" and "validation"
arrays of pair examples.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrainPairs,
}

var trainJointCmd = &cobra.Command{
	Use:   "joint <corpus.json>",
	Short: "Train an end-to-end model with span detection",
	Long: `Train all components including the span scorer on a corpus carrying
both span-labeled sequences and antecedent-labeled pairs, then save the
result as a bundle.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrainJoint,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.AddCommand(trainPairsCmd)
	trainCmd.AddCommand(trainJointCmd)

	for _, c := range []*cobra.Command{trainPairsCmd, trainJointCmd} {
		c.Flags().String("name", "model", "bundle name to save under")
		c.Flags().Int("embedding-dim", 64, "token embedding width")
		c.Flags().Int("hidden-dim", 64, "recurrent hidden width per direction")
		c.Flags().Int("scorer-hidden-dim", 128, "scorer hidden layer width")
		c.Flags().Int("max-width", 8, "maximum mention span width in tokens")
		c.Flags().Int("width-dim", 16, "span width embedding size")
		c.Flags().Int("epochs", 20, "maximum training epochs")
		c.Flags().Int("batch-size", 32, "examples per parameter update")
		c.Flags().Float64("learning-rate", 1e-3, "optimizer learning rate")
		c.Flags().Int("patience", 3, "epochs without improvement before stopping")
		c.Flags().Float64("dropout", 0.2, "dropout rate inside scorers")
		c.Flags().Int64("seed", 1, "random seed")
	}
}

// trainSetup is everything both training modes share.
type trainSetup struct {
	logger *zap.Logger
	rng    *rand.Rand
	config training.Config
	name   string

	embeddingDim    int
	hiddenDim       int
	scorerHiddenDim int
	maxWidth        int
	widthDim        int
	dropout         float64
}

func newTrainSetup(cmd *cobra.Command) *trainSetup {
	intFlag := func(name string) int { v, _ := cmd.Flags().GetInt(name); return v }
	floatFlag := func(name string) float64 { v, _ := cmd.Flags().GetFloat64(name); return v }
	seed, _ := cmd.Flags().GetInt64("seed")
	name, _ := cmd.Flags().GetString("name")

	cfg := training.DefaultConfig()
	cfg.Epochs = intFlag("epochs")
	cfg.BatchSize = intFlag("batch-size")
	cfg.LearningRate = floatFlag("learning-rate")
	cfg.Patience = intFlag("patience")
	cfg.Seed = seed

	return &trainSetup{
		logger:          newLogger(),
		rng:             rand.New(rand.NewSource(seed)),
		config:          cfg,
		name:            name,
		embeddingDim:    intFlag("embedding-dim"),
		hiddenDim:       intFlag("hidden-dim"),
		scorerHiddenDim: intFlag("scorer-hidden-dim"),
		maxWidth:        intFlag("max-width"),
		widthDim:        intFlag("width-dim"),
		dropout:         floatFlag("dropout"),
	}
}

func (s *trainSetup) newComponents(vocab *encoding.Vocabulary) (*encoding.Encoder, *encoding.SpanBuilder, error) {
	enc, err := encoding.NewEncoder(encoding.EncoderConfig{
		VocabSize:    vocab.Size(),
		EmbeddingDim: s.embeddingDim,
		HiddenDim:    s.hiddenDim,
	}, s.rng)
	if err != nil {
		return nil, nil, err
	}
	builder, err := encoding.NewSpanBuilder(s.maxWidth, s.widthDim, s.rng)
	if err != nil {
		return nil, nil, err
	}
	return enc, builder, nil
}

func (s *trainSetup) saveBundle(b *bundle.Bundle, result *training.Result) error {
	dir := filepath.Join(viper.GetString("bundles_dir"), s.name)
	if err := bundle.Save(dir, b); err != nil {
		return fmt.Errorf("saving bundle: %w", err)
	}
	s.logger.Info("Saved bundle",
		zap.String("bundle", s.name),
		zap.String("path", dir),
		zap.Int("best_epoch", result.BestEpoch),
		zap.Int("epochs_run", result.EpochsRun),
		zap.Bool("stopped_early", result.Stopped))
	return nil
}

func runTrainPairs(cmd *cobra.Command, args []string) error {
	setup := newTrainSetup(cmd)
	defer func() { _ = setup.logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var corpus training.PairCorpus
	if err := readJSONFile(args[0], &corpus); err != nil {
		return err
	}

	var windows [][]string
	for _, ex := range corpus.Train {
		windows = append(windows, ex.A.Window, ex.B.Window)
	}
	vocab := encoding.BuildVocabulary(windows...)

	enc, builder, err := setup.newComponents(vocab)
	if err != nil {
		return err
	}
	scorer, err := pairs.NewScorer(builder.Dim(enc.StateDim()), setup.scorerHiddenDim, setup.rng)
	if err != nil {
		return err
	}
	model := &training.PairwiseModel{Vocab: vocab, Encoder: enc, Builder: builder, Scorer: scorer}

	objective, err := training.NewPairwiseObjective(model, corpus, setup.dropout, setup.config.Seed)
	if err != nil {
		return err
	}
	loop, err := training.NewLoop(setup.config, setup.logger)
	if err != nil {
		return err
	}

	setup.logger.Info("Training pairwise model",
		zap.Int("train_examples", len(corpus.Train)),
		zap.Int("validation_examples", len(corpus.Validation)),
		zap.Int("vocab_size", vocab.Size()))

	result, err := loop.Run(ctx, objective)
	if err != nil {
		return err
	}
	return setup.saveBundle(&bundle.Bundle{
		Vocab:      vocab,
		Encoder:    enc,
		Builder:    builder,
		PairScorer: scorer,
	}, result)
}

func runTrainJoint(cmd *cobra.Command, args []string) error {
	setup := newTrainSetup(cmd)
	defer func() { _ = setup.logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var corpus training.JointCorpus
	if err := readJSONFile(args[0], &corpus); err != nil {
		return err
	}

	var sequences [][]string
	for _, ex := range corpus.SpanTrain {
		sequences = append(sequences, ex.Tokens)
	}
	for _, ex := range corpus.AntecedentTrain {
		sequences = append(sequences, ex.Tokens)
	}
	vocab := encoding.BuildVocabulary(sequences...)

	enc, builder, err := setup.newComponents(vocab)
	if err != nil {
		return err
	}
	reprDim := builder.Dim(enc.StateDim())
	spanScorer, err := spans.NewScorer(reprDim, setup.scorerHiddenDim, setup.rng)
	if err != nil {
		return err
	}
	pairScorer, err := pairs.NewScorer(reprDim, setup.scorerHiddenDim, setup.rng)
	if err != nil {
		return err
	}
	model := &training.JointModel{
		Vocab:      vocab,
		Encoder:    enc,
		Builder:    builder,
		SpanScorer: spanScorer,
		PairScorer: pairScorer,
	}

	jointConfig := training.DefaultJointConfig()
	jointConfig.Dropout = setup.dropout
	objective, err := training.NewJointObjective(model, corpus, jointConfig, setup.config.Seed)
	if err != nil {
		return err
	}
	loop, err := training.NewLoop(setup.config, setup.logger)
	if err != nil {
		return err
	}

	setup.logger.Info("Training end-to-end model",
		zap.Int("span_examples", len(corpus.SpanTrain)),
		zap.Int("antecedent_examples", len(corpus.AntecedentTrain)),
		zap.Int("vocab_size", vocab.Size()))

	result, err := loop.Run(ctx, objective)
	if err != nil {
		return err
	}
	return setup.saveBundle(&bundle.Bundle{
		Vocab:      vocab,
		Encoder:    enc,
		Builder:    builder,
		SpanScorer: spanScorer,
		PairScorer: pairScorer,
	}, result)
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
