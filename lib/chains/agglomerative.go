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

// Agglomerative builds chains by cluster-average greedy agglomeration,
// the strategy the pipelined resolver uses. Every mention starts as a
// singleton cluster; each round the pair of clusters with the highest
// mean cross-cluster score is merged if that mean reaches MinScore.
// The cluster count strictly decreases every round, so the loop
// terminates.
type Agglomerative struct {
	MinScore float64
}

// NewAgglomerative validates the threshold at construction time.
func NewAgglomerative(minScore float64) (*Agglomerative, error) {
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("min score must be in [0, 1], got %v", minScore)
	}
	return &Agglomerative{MinScore: minScore}, nil
}

// Build implements Builder.
func (a *Agglomerative) Build(mentions []Mention, scores PairScores) ([]Chain, error) {
	clusters := make([][]int, len(mentions))
	for i := range mentions {
		clusters[i] = []int{i}
	}

	for len(clusters) > 1 {
		bestA, bestB := -1, -1
		bestMean := -1.0
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				mean := meanCrossScore(clusters[i], clusters[j], scores)
				// Strict comparison keeps the earliest maximal pair,
				// making merge order deterministic.
				if mean > bestMean {
					bestMean = mean
					bestA, bestB = i, j
				}
			}
		}
		if bestA < 0 || bestMean < a.MinScore {
			break
		}
		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}

	return finalize(mentions, clusters), nil
}

// meanCrossScore averages the pairwise scores across two clusters.
// Missing or out-of-bound pairs contribute 0.
func meanCrossScore(a, b []int, scores PairScores) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			if s, ok := scores.Score(i, j); ok {
				sum += s
			}
		}
	}
	return sum / float64(len(a)*len(b))
}
