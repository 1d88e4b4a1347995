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
	"fmt"

	"github.com/lexfly/coref/lib/chains"
)

// Re-exported chain types so callers only import the root package.
type (
	Mention     = chains.Mention
	MentionType = chains.MentionType
	Chain       = chains.Chain
)

const (
	Pronoun    = chains.Pronoun
	ProperName = chains.ProperName
	DefiniteNP = chains.DefiniteNP
	SpanOnly   = chains.SpanOnly
)

// Document is tokenized text split into sentences. Token indices used
// throughout are absolute positions in the flattened token sequence
// unless a sentence index accompanies them.
type Document struct {
	Sentences [][]string `json:"sentences"`
}

// NewDocument builds a document from tokenized sentences.
func NewDocument(sentences ...[]string) Document {
	return Document{Sentences: sentences}
}

// Tokens returns the flattened token sequence.
func (d Document) Tokens() []string {
	var out []string
	for _, s := range d.Sentences {
		out = append(out, s...)
	}
	return out
}

// NumTokens returns the total token count.
func (d Document) NumTokens() int {
	n := 0
	for _, s := range d.Sentences {
		n += len(s)
	}
	return n
}

// Empty reports whether the document has no tokens.
func (d Document) Empty() bool { return d.NumTokens() == 0 }

// AbsoluteIndex converts a (sentence, token) position into an index in
// the flattened sequence.
func (d Document) AbsoluteIndex(sentence, token int) (int, error) {
	if sentence < 0 || sentence >= len(d.Sentences) {
		return 0, fmt.Errorf("sentence index %d out of range [0, %d)", sentence, len(d.Sentences))
	}
	if token < 0 || token >= len(d.Sentences[sentence]) {
		return 0, fmt.Errorf("token index %d out of range for sentence %d of %d tokens",
			token, sentence, len(d.Sentences[sentence]))
	}
	abs := token
	for i := 0; i < sentence; i++ {
		abs += len(d.Sentences[i])
	}
	return abs, nil
}

// SentenceAt returns the sentence index holding the given absolute
// token position.
func (d Document) SentenceAt(abs int) (int, error) {
	if abs < 0 {
		return 0, fmt.Errorf("token index %d out of range", abs)
	}
	for i, s := range d.Sentences {
		if abs < len(s) {
			return i, nil
		}
		abs -= len(s)
	}
	return 0, fmt.Errorf("token index past end of document")
}

// ResolvedSpan is a mention span the end-to-end resolver kept, with
// its detection score.
type ResolvedSpan struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Result is the output of one resolution: the coreference chains plus
// the mentions that entered clustering, in document order.
type Result struct {
	Chains   []Chain   `json:"chains"`
	Mentions []Mention `json:"mentions"`

	// Spans is only populated by the end-to-end resolver.
	Spans []ResolvedSpan `json:"spans,omitempty"`
}
