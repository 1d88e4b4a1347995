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
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexfly/coref/lib/bundle"
	"github.com/lexfly/coref/lib/chains"
	"github.com/lexfly/coref/lib/pairs"
	"github.com/lexfly/coref/lib/spans"
)

// EndToEndResolver resolves raw tokenized text without a mention
// detector: it enumerates candidate spans, scores and prunes them with
// the bundle's span scorer, then scores and clusters the survivors.
type EndToEndResolver struct {
	bundle  *bundle.Bundle
	options Options
	builder chains.Builder
	logger  *zap.Logger
}

// NewEndToEndResolver creates a resolver from a loaded model bundle.
// The bundle must carry a span scorer.
func NewEndToEndResolver(b *bundle.Bundle, options Options, logger *zap.Logger) (*EndToEndResolver, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("nil bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	if b.SpanScorer == nil {
		return nil, fmt.Errorf("bundle has no span scorer; use the pipelined resolver")
	}
	builder, err := newChainBuilder(options)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EndToEndResolver{
		bundle:  b,
		options: options,
		builder: builder,
		logger:  logger.Named("endtoend"),
	}, nil
}

// ResolveDocument resolves a document from tokens alone. An empty
// document resolves to empty chains.
func (r *EndToEndResolver) ResolveDocument(ctx context.Context, doc Document) (*Result, error) {
	start := time.Now()
	if doc.Empty() {
		return &Result{Chains: []Chain{}, Mentions: []Mention{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := doc.Tokens()
	states, err := r.bundle.Encoder.Encode(r.bundle.Vocab.IDs(tokens))
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}

	kept, err := r.detectSpans(tokens, states)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return &Result{Chains: []Chain{}, Mentions: []Mention{}, Spans: []ResolvedSpan{}}, nil
	}

	mentions, candidates, resolvedSpans, err := r.spansToMentions(doc, tokens, kept)
	if err != nil {
		return nil, err
	}

	scores, scored, err := scorePairs(r.bundle, candidates, len(tokens), r.options)
	if err != nil {
		return nil, stageErr(StageScore, err)
	}

	resolved, err := r.builder.Build(mentions, scores)
	if err != nil {
		return nil, stageErr(StageCluster, err)
	}

	recordResolution(string(r.options.Strategy), len(mentions), len(resolved))
	RecordResolutionDuration(string(r.options.Strategy), "success", time.Since(start).Seconds())
	r.logger.Debug("Resolved document end to end",
		zap.Int("tokens", len(tokens)),
		zap.Int("spans_kept", len(kept)),
		zap.Int("pairs_scored", scored),
		zap.Int("chains", len(resolved)),
		zap.Duration("duration", time.Since(start)))

	return &Result{Chains: resolved, Mentions: mentions, Spans: resolvedSpans}, nil
}

// detectSpans enumerates, scores, and prunes candidate spans. The
// returned spans carry their representations and are in document order.
func (r *EndToEndResolver) detectSpans(tokens []string, states [][]float64) ([]spans.Span, error) {
	candidates := spans.Enumerate(len(tokens), r.bundle.Builder.MaxWidth())
	for i := range candidates {
		repr, err := r.bundle.Builder.Build(states, candidates[i].Start, candidates[i].End)
		if err != nil {
			return nil, stageErr(StagePrune, err)
		}
		score, err := r.bundle.SpanScorer.Score(repr)
		if err != nil {
			return nil, stageErr(StagePrune, err)
		}
		candidates[i].Representation = repr
		candidates[i].Score = score
	}
	kept := spans.Prune(candidates, spans.PruneConfig{
		TopK:     r.options.TopKSpans,
		MinScore: r.options.MinSpanScore,
	})
	return kept, nil
}

func (r *EndToEndResolver) spansToMentions(doc Document, tokens []string, kept []spans.Span) ([]Mention, []pairs.Candidate, []ResolvedSpan, error) {
	mentions := make([]Mention, len(kept))
	candidates := make([]pairs.Candidate, len(kept))
	resolvedSpans := make([]ResolvedSpan, len(kept))
	for i, sp := range kept {
		sentence, err := doc.SentenceAt(sp.Start)
		if err != nil {
			return nil, nil, nil, stageErr(StagePrune, err)
		}
		text := strings.Join(tokens[sp.Start:sp.End+1], " ")
		offset, err := doc.AbsoluteIndex(sentence, 0)
		if err != nil {
			return nil, nil, nil, stageErr(StagePrune, err)
		}
		mentions[i] = Mention{
			Text:          text,
			Type:          SpanOnly,
			SentenceIndex: sentence,
			TokenIndex:    sp.Start - offset,
		}
		candidates[i] = pairs.Candidate{
			Index:          i,
			Start:          sp.Start,
			End:            sp.End,
			SentenceIndex:  sentence,
			Text:           text,
			Representation: sp.Representation,
		}
		resolvedSpans[i] = ResolvedSpan{Start: sp.Start, End: sp.End, Score: sp.Score}
	}
	return mentions, candidates, resolvedSpans, nil
}
