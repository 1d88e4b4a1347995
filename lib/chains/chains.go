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

// Package chains partitions mentions into coreference chains from
// pairwise compatibility scores. Two interchangeable strategies are
// provided behind one Builder interface: cluster-average greedy
// agglomeration and greedy left-to-right antecedent linking. Both share
// the same post-processing, so the partition invariant (every mention
// in at most one chain, every chain with at least two mentions) holds
// regardless of strategy.
package chains

import (
	"fmt"
	"sort"
)

// MentionType classifies how a mention refers to its entity.
type MentionType string

const (
	Pronoun    MentionType = "pronoun"
	ProperName MentionType = "proper_name"
	DefiniteNP MentionType = "definite_np"
	SpanOnly   MentionType = "span"
)

// Mention is a text span believed to refer to an entity. It references
// tokens by index and owns no token data.
type Mention struct {
	Text          string      `json:"text"`
	Type          MentionType `json:"type"`
	SentenceIndex int         `json:"sentence_index"`
	TokenIndex    int         `json:"token_index"`

	// Optional agreement attributes, empty when unknown.
	Gender     string `json:"gender,omitempty"`
	Number     string `json:"number,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
}

// Chain is a set of mentions judged to denote the same entity. Mentions
// are kept in document order; ids are unique within one resolution run.
type Chain struct {
	ID             int       `json:"id"`
	Mentions       []Mention `json:"mentions"`
	Representative string    `json:"representative"`
	EntityType     string    `json:"entity_type,omitempty"`
}

// PairScores provides the pairwise compatibility scores for a mention
// set. Score returns (score, true) for pairs that were scored and
// (0, false) for pairs outside the eligible set.
type PairScores interface {
	Score(i, j int) (float64, bool)
}

// ScoreMap is a PairScores backed by a map keyed on index pairs. Keys
// are normalized so Score(i, j) == Score(j, i).
type ScoreMap map[[2]int]float64

// Set records a score for the unordered pair {i, j}.
func (m ScoreMap) Set(i, j int, score float64) {
	if i > j {
		i, j = j, i
	}
	m[[2]int{i, j}] = score
}

// Score implements PairScores.
func (m ScoreMap) Score(i, j int) (float64, bool) {
	if i > j {
		i, j = j, i
	}
	s, ok := m[[2]int{i, j}]
	return s, ok
}

// Builder turns mentions plus pairwise scores into coreference chains.
// Mentions must be supplied in document order.
type Builder interface {
	Build(mentions []Mention, scores PairScores) ([]Chain, error)
}

// finalize applies the post-processing shared by both strategies:
// drop clusters with fewer than two mentions, assign ids in order of
// first appearance, and select representatives.
func finalize(mentions []Mention, clusters [][]int) []Chain {
	kept := make([][]int, 0, len(clusters))
	for _, c := range clusters {
		if len(c) < 2 {
			continue
		}
		sorted := append([]int(nil), c...)
		sort.Ints(sorted)
		kept = append(kept, sorted)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i][0] < kept[j][0] })

	out := make([]Chain, 0, len(kept))
	for i, c := range kept {
		ms := make([]Mention, len(c))
		for k, idx := range c {
			ms[k] = mentions[idx]
		}
		out = append(out, Chain{
			ID:             i + 1,
			Mentions:       ms,
			Representative: representative(ms),
			EntityType:     entityType(ms),
		})
	}
	return out
}

// representative selects the chain's display text by priority: longest
// proper-name mention, else longest definite-noun-phrase mention, else
// the first mention in document order.
func representative(mentions []Mention) string {
	if best := longestOfType(mentions, ProperName); best != "" {
		return best
	}
	if best := longestOfType(mentions, DefiniteNP); best != "" {
		return best
	}
	return mentions[0].Text
}

func longestOfType(mentions []Mention, mt MentionType) string {
	best := ""
	for _, m := range mentions {
		if m.Type == mt && len(m.Text) > len(best) {
			best = m.Text
		}
	}
	return best
}

func entityType(mentions []Mention) string {
	for _, m := range mentions {
		if m.EntityType != "" {
			return m.EntityType
		}
	}
	return ""
}

// ValidatePartition checks the partition invariant over chains built
// from n mentions: every mention index in at most one chain and every
// chain with at least two mentions. Mentions are matched positionally
// by (sentence, token) identity.
func ValidatePartition(chains []Chain) error {
	seen := make(map[[2]int]int)
	ids := make(map[int]bool)
	for _, c := range chains {
		if len(c.Mentions) < 2 {
			return fmt.Errorf("chain %d has %d mentions, want at least 2", c.ID, len(c.Mentions))
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate chain id %d", c.ID)
		}
		ids[c.ID] = true
		for _, m := range c.Mentions {
			key := [2]int{m.SentenceIndex, m.TokenIndex}
			if prev, ok := seen[key]; ok {
				return fmt.Errorf("mention at sentence %d token %d in chains %d and %d",
					m.SentenceIndex, m.TokenIndex, prev, c.ID)
			}
			seen[key] = c.ID
		}
	}
	return nil
}
