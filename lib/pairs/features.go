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

// Package pairs scores whether two mention or span representations are
// coreferent. A pair is only ever scored when it falls within the
// configured distance bound; pairs outside it never enter the scored
// set at all.
package pairs

import "strings"

// FeatureWidth is the constant width of the hand feature vector. The
// defined features occupy the first entries; the rest is zero padding
// so the scorer input shape never depends on feature count tweaks.
const FeatureWidth = 16

// nearTokenDistance is the bound for the near-distance flag.
const nearTokenDistance = 10

// lengthScale normalizes span lengths for the length features.
const lengthScale = 10

// Candidate is the unit the pairwise scorer operates on: a mention or
// surviving span plus its learned representation.
type Candidate struct {
	// Index is the candidate's position in document order.
	Index int

	// Start and End are absolute token indices, End inclusive.
	Start int
	End   int

	// SentenceIndex is the sentence the candidate starts in.
	SentenceIndex int

	// Text is the surface form, used for string-match features and for
	// mapping spans back to mention text.
	Text string

	// Representation is the fixed-width learned span representation.
	Representation []float64
}

// TokenDistance returns the token gap between two candidates, zero for
// overlapping spans.
func TokenDistance(a, b Candidate) int {
	if a.Start > b.Start {
		a, b = b, a
	}
	d := b.Start - a.End
	if d < 0 {
		return 0
	}
	return d
}

// SentenceDistance returns the absolute sentence-index gap.
func SentenceDistance(a, b Candidate) int {
	d := a.SentenceIndex - b.SentenceIndex
	if d < 0 {
		return -d
	}
	return d
}

// HandFeatures builds the fixed-width feature vector for a candidate
// pair within a document of docLen tokens. It is a pure function.
func HandFeatures(a, b Candidate, docLen int) []float64 {
	f := make([]float64, FeatureWidth)
	if docLen <= 0 {
		docLen = 1
	}

	dist := TokenDistance(a, b)
	f[0] = clamp01(float64(dist) / float64(docLen))
	if dist <= nearTokenDistance {
		f[1] = 1
	}

	lenA := a.End - a.Start + 1
	lenB := b.End - b.Start + 1
	f[2] = clamp01(float64(lenA) / lengthScale)
	f[3] = clamp01(float64(lenB) / lengthScale)
	if lenA == lenB {
		f[4] = 1
	}

	ta := strings.ToLower(a.Text)
	tb := strings.ToLower(b.Text)
	if ta != "" && ta == tb {
		f[5] = 1
	}
	if partialMatch(ta, tb) {
		f[6] = 1
	}
	if headMatch(ta, tb) {
		f[7] = 1
	}

	f[8] = clamp01(float64(a.Start) / float64(docLen))
	f[9] = clamp01(float64(b.Start) / float64(docLen))
	if a.Start == 0 {
		f[10] = 1
	}
	if b.Start == 0 {
		f[11] = 1
	}
	return f
}

// partialMatch reports whether the two surface forms share any token.
func partialMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	toks := strings.Fields(a)
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	for _, t := range strings.Fields(b) {
		if set[t] {
			return true
		}
	}
	return false
}

// headMatch compares the last tokens, a serviceable approximation of
// the syntactic head for noun phrases.
func headMatch(a, b string) bool {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	return ta[len(ta)-1] == tb[len(tb)-1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
