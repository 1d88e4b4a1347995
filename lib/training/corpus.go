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

import "fmt"

// MentionExample is one mention with the token window it occurs in.
// Index and Width locate the mention inside Window; DocTokenIndex and
// SentenceIndex locate it in the source document for pair features.
type MentionExample struct {
	Window        []string `json:"window"`
	Index         int      `json:"index"`
	Width         int      `json:"width"`
	DocTokenIndex int      `json:"doc_token_index"`
	SentenceIndex int      `json:"sentence_index"`
	Text          string   `json:"text"`
}

// Validate checks the mention fits inside its window.
func (m MentionExample) Validate() error {
	if m.Width <= 0 {
		return fmt.Errorf("mention width must be positive, got %d", m.Width)
	}
	if m.Index < 0 || m.Index+m.Width > len(m.Window) {
		return fmt.Errorf("mention [%d,%d) outside window of %d tokens",
			m.Index, m.Index+m.Width, len(m.Window))
	}
	return nil
}

// PairExample is a labeled mention pair: Label is 1.0 when A and B
// corefer and 0.0 otherwise.
type PairExample struct {
	A      MentionExample `json:"a"`
	B      MentionExample `json:"b"`
	Label  float64        `json:"label"`
	DocLen int            `json:"doc_len"`
}

// Validate checks both mentions and the label.
func (p PairExample) Validate() error {
	if err := p.A.Validate(); err != nil {
		return fmt.Errorf("mention a: %w", err)
	}
	if err := p.B.Validate(); err != nil {
		return fmt.Errorf("mention b: %w", err)
	}
	if p.Label != 0.0 && p.Label != 1.0 {
		return fmt.Errorf("label must be 0 or 1, got %v", p.Label)
	}
	if p.DocLen <= 0 {
		return fmt.Errorf("document length must be positive, got %d", p.DocLen)
	}
	return nil
}

// PairCorpus is a labeled pair dataset with a held-out split.
type PairCorpus struct {
	Train      []PairExample `json:"train"`
	Validation []PairExample `json:"validation"`
}

// Validate checks every example in both splits.
func (c PairCorpus) Validate() error {
	if len(c.Train) == 0 {
		return fmt.Errorf("empty training split")
	}
	if len(c.Validation) == 0 {
		return fmt.Errorf("empty validation split")
	}
	for i, ex := range c.Train {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("train example %d: %w", i, err)
		}
	}
	for i, ex := range c.Validation {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("validation example %d: %w", i, err)
		}
	}
	return nil
}

// SpanLabeledExample is a token sequence with its gold mention spans,
// each span an inclusive [start, end] token pair.
type SpanLabeledExample struct {
	Tokens    []string `json:"tokens"`
	GoldSpans [][2]int `json:"gold_spans"`
}

// Validate checks every gold span lies within the token sequence.
func (s SpanLabeledExample) Validate() error {
	if len(s.Tokens) == 0 {
		return fmt.Errorf("empty token sequence")
	}
	for i, sp := range s.GoldSpans {
		if sp[0] < 0 || sp[1] < sp[0] || sp[1] >= len(s.Tokens) {
			return fmt.Errorf("gold span %d [%d,%d] outside %d tokens",
				i, sp[0], sp[1], len(s.Tokens))
		}
	}
	return nil
}

// AntecedentExample labels whether SpanB's antecedent is SpanA within
// the same token sequence.
type AntecedentExample struct {
	Tokens []string `json:"tokens"`
	SpanA  [2]int   `json:"span_a"`
	SpanB  [2]int   `json:"span_b"`
	Label  float64  `json:"label"`
}

// Validate checks both spans and the label.
func (a AntecedentExample) Validate() error {
	if len(a.Tokens) == 0 {
		return fmt.Errorf("empty token sequence")
	}
	for _, sp := range [][2]int{a.SpanA, a.SpanB} {
		if sp[0] < 0 || sp[1] < sp[0] || sp[1] >= len(a.Tokens) {
			return fmt.Errorf("span [%d,%d] outside %d tokens", sp[0], sp[1], len(a.Tokens))
		}
	}
	if a.Label != 0.0 && a.Label != 1.0 {
		return fmt.Errorf("label must be 0 or 1, got %v", a.Label)
	}
	return nil
}

// JointCorpus carries both objectives of end-to-end training: span
// detection and antecedent linking, each with a held-out split.
type JointCorpus struct {
	SpanTrain            []SpanLabeledExample `json:"span_train"`
	SpanValidation       []SpanLabeledExample `json:"span_validation"`
	AntecedentTrain      []AntecedentExample  `json:"antecedent_train"`
	AntecedentValidation []AntecedentExample  `json:"antecedent_validation"`
}

// Validate checks all four splits.
func (c JointCorpus) Validate() error {
	if len(c.SpanTrain) == 0 || len(c.AntecedentTrain) == 0 {
		return fmt.Errorf("both training splits must be non-empty")
	}
	if len(c.SpanValidation) == 0 || len(c.AntecedentValidation) == 0 {
		return fmt.Errorf("both validation splits must be non-empty")
	}
	for i, ex := range c.SpanTrain {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("span train example %d: %w", i, err)
		}
	}
	for i, ex := range c.SpanValidation {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("span validation example %d: %w", i, err)
		}
	}
	for i, ex := range c.AntecedentTrain {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("antecedent train example %d: %w", i, err)
		}
	}
	for i, ex := range c.AntecedentValidation {
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("antecedent validation example %d: %w", i, err)
		}
	}
	return nil
}
