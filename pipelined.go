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

package coref

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/bundle"
	"github.com/lexfly/coref/lib/chains"
	"github.com/lexfly/coref/lib/pairs"
)

// PipelinedResolver resolves coreference over pre-detected mentions:
// encode the document, build a representation per mention, score the
// eligible pairs, and cluster.
type PipelinedResolver struct {
	bundle   *bundle.Bundle
	options  Options
	builder  chains.Builder
	detector MentionDetector
	logger   *zap.Logger
}

// NewPipelinedResolver creates a resolver from a loaded model bundle.
// The detector may be nil if callers always supply mentions themselves.
func NewPipelinedResolver(b *bundle.Bundle, options Options, detector MentionDetector, logger *zap.Logger) (*PipelinedResolver, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("nil bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	builder, err := newChainBuilder(options)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelinedResolver{
		bundle:   b,
		options:  options,
		builder:  builder,
		detector: detector,
		logger:   logger.Named("pipelined"),
	}, nil
}

func newChainBuilder(options Options) (chains.Builder, error) {
	switch options.Strategy {
	case StrategyGreedy:
		return chains.NewGreedy(options.MinPairScore)
	default:
		return chains.NewAgglomerative(options.MinPairScore)
	}
}

// Resolve clusters the given mentions. Mentions must be in document
// order. An empty document or mention list resolves to empty chains.
func (r *PipelinedResolver) Resolve(ctx context.Context, doc Document, mentions []Mention) (*Result, error) {
	start := time.Now()
	if doc.Empty() || len(mentions) == 0 {
		return &Result{Chains: []Chain{}, Mentions: mentions}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := r.encodeMentions(doc, mentions)
	if err != nil {
		return nil, err
	}

	scores, scored, err := scorePairs(r.bundle, candidates, doc.NumTokens(), r.options)
	if err != nil {
		return nil, stageErr(StageScore, err)
	}

	resolved, err := r.builder.Build(mentions, scores)
	if err != nil {
		return nil, stageErr(StageCluster, err)
	}

	recordResolution(string(r.options.Strategy), len(mentions), len(resolved))
	RecordResolutionDuration(string(r.options.Strategy), "success", time.Since(start).Seconds())
	r.logger.Debug("Resolved document",
		zap.Int("mentions", len(mentions)),
		zap.Int("pairs_scored", scored),
		zap.Int("chains", len(resolved)),
		zap.Duration("duration", time.Since(start)))

	return &Result{Chains: resolved, Mentions: mentions}, nil
}

// ResolveDocument detects mentions first, then resolves. It requires a
// detector.
func (r *PipelinedResolver) ResolveDocument(ctx context.Context, doc Document) (*Result, error) {
	if r.detector == nil {
		return nil, fmt.Errorf("no mention detector configured")
	}
	mentions, err := r.detector.Detect(ctx, doc)
	if err != nil {
		return nil, stageErr(StageDetect, err)
	}
	sort.SliceStable(mentions, func(i, j int) bool {
		if mentions[i].SentenceIndex != mentions[j].SentenceIndex {
			return mentions[i].SentenceIndex < mentions[j].SentenceIndex
		}
		return mentions[i].TokenIndex < mentions[j].TokenIndex
	})
	return r.Resolve(ctx, doc, mentions)
}

// encodeMentions encodes a bounded token window around each mention
// and builds its scoring representation. Mention representations come
// from the same windowed encoding the trainer uses, not from a full
// document pass, so inference sees the distribution the model was fit
// on and per-mention encoding cost stays independent of document
// length.
func (r *PipelinedResolver) encodeMentions(doc Document, mentions []Mention) ([]pairs.Candidate, error) {
	tokens := doc.Tokens()
	candidates := make([]pairs.Candidate, len(mentions))
	for i, m := range mentions {
		abs, err := doc.AbsoluteIndex(m.SentenceIndex, m.TokenIndex)
		if err != nil {
			return nil, stageErr(StageEncode, fmt.Errorf("%w: mention %d %q: %v", ErrInvalidMention, i, m.Text, err))
		}
		width := mentionWidth(m)
		end := abs + width - 1
		if end >= len(tokens) {
			return nil, stageErr(StageEncode, fmt.Errorf("%w: mention %d %q spans past end of document", ErrInvalidMention, i, m.Text))
		}
		winStart := abs - r.options.ContextWindow
		if winStart < 0 {
			winStart = 0
		}
		winEnd := end + r.options.ContextWindow
		if winEnd >= len(tokens) {
			winEnd = len(tokens) - 1
		}
		states, err := r.bundle.Encoder.Encode(r.bundle.Vocab.IDs(tokens[winStart : winEnd+1]))
		if err != nil {
			return nil, stageErr(StageEncode, err)
		}
		repr, err := r.bundle.Builder.Build(states, abs-winStart, end-winStart)
		if err != nil {
			return nil, stageErr(StageEncode, err)
		}
		candidates[i] = pairs.Candidate{
			Index:          i,
			Start:          abs,
			End:            end,
			SentenceIndex:  m.SentenceIndex,
			Text:           m.Text,
			Representation: repr,
		}
	}
	return candidates, nil
}

// mentionWidth counts the mention's tokens from its surface form; a
// mention with no text covers a single token.
func mentionWidth(m Mention) int {
	if n := len(strings.Fields(m.Text)); n > 0 {
		return n
	}
	return 1
}

// scorePairs scores every pair within both distance windows. Pairs
// outside a window are never scored, so clustering cannot link them
// directly.
func scorePairs(b *bundle.Bundle, candidates []pairs.Candidate, docLen int, options Options) (chains.ScoreMap, int, error) {
	tokenGate := pairs.TokenGate(options.MaxTokenDistance)
	sentenceGate := pairs.SentenceGate(options.MaxSentenceDistance)
	eligible := pairs.EligiblePairs(candidates, func(a, b pairs.Candidate) bool {
		return tokenGate(a, b) && sentenceGate(a, b)
	})

	scores := make(chains.ScoreMap, len(eligible))
	for _, pr := range eligible {
		a, c := candidates[pr[0]], candidates[pr[1]]
		score, err := b.PairScorer.ScorePair(a, c, docLen)
		if err != nil {
			return nil, 0, fmt.Errorf("pair (%d, %d): %w", pr[0], pr[1], err)
		}
		scores.Set(pr[0], pr[1], score)
	}
	return scores, len(eligible), nil
}
