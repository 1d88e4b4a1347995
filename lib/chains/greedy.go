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

package chains

import "fmt"

// Greedy builds chains by left-to-right antecedent linking, the
// strategy the end-to-end resolver uses. Mentions are processed in
// document order; each one links to its highest-scoring prior mention
// at or above MinScore, or starts a new singleton. One pass, no
// re-scanning.
type Greedy struct {
	MinScore float64
}

// NewGreedy validates the threshold at construction time.
func NewGreedy(minScore float64) (*Greedy, error) {
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("min score must be in [0, 1], got %v", minScore)
	}
	return &Greedy{MinScore: minScore}, nil
}

// Build implements Builder.
func (g *Greedy) Build(mentions []Mention, scores PairScores) ([]Chain, error) {
	// clusterOf[i] is the cluster id mention i belongs to.
	clusterOf := make([]int, len(mentions))
	var clusters [][]int

	for j := range mentions {
		bestI := -1
		bestScore := 0.0
		for i := 0; i < j; i++ {
			s, ok := scores.Score(i, j)
			if !ok || s < g.MinScore {
				continue
			}
			// On ties prefer the nearer antecedent.
			if bestI < 0 || s > bestScore || (s == bestScore && i > bestI) {
				bestI = i
				bestScore = s
			}
		}
		if bestI >= 0 {
			c := clusterOf[bestI]
			clusters[c] = append(clusters[c], j)
			clusterOf[j] = c
			continue
		}
		clusterOf[j] = len(clusters)
		clusters = append(clusters, []int{j})
	}

	return finalize(mentions, clusters), nil
}
