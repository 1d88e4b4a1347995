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

// Package encoding turns token sequences into contextual vectors and
// contiguous token ranges into fixed-width span representations.
package encoding

import "fmt"

// UnknownToken is the reserved token every out-of-vocabulary word maps to.
const UnknownToken = "<unk>"

// UnknownID is the reserved id of UnknownToken.
const UnknownID = 0

// Vocabulary is a stable token -> id map. It is built once from the
// training and validation data and then frozen; a model bundle is only
// valid together with the vocabulary that produced it.
type Vocabulary struct {
	ToID   map[string]int `json:"to_id"`
	Tokens []string       `json:"tokens"`
}

// NewVocabulary creates a vocabulary containing only the unknown token.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		ToID:   map[string]int{UnknownToken: UnknownID},
		Tokens: []string{UnknownToken},
	}
}

// BuildVocabulary creates a vocabulary over every token in the given
// sequences, in first-appearance order.
func BuildVocabulary(sequences ...[]string) *Vocabulary {
	v := NewVocabulary()
	for _, seq := range sequences {
		for _, tok := range seq {
			v.Add(tok)
		}
	}
	return v
}

// Add inserts a token if not already present and returns its id.
func (v *Vocabulary) Add(token string) int {
	if id, ok := v.ToID[token]; ok {
		return id
	}
	id := len(v.Tokens)
	v.ToID[token] = id
	v.Tokens = append(v.Tokens, token)
	return id
}

// ID returns the id for a token; unknown tokens map to UnknownID.
func (v *Vocabulary) ID(token string) int {
	if id, ok := v.ToID[token]; ok {
		return id
	}
	return UnknownID
}

// IDs maps a token sequence to ids.
func (v *Vocabulary) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = v.ID(tok)
	}
	return ids
}

// Size returns the number of entries, including the unknown token.
func (v *Vocabulary) Size() int {
	return len(v.Tokens)
}

// Validate checks internal consistency after deserialization.
func (v *Vocabulary) Validate() error {
	if len(v.Tokens) == 0 || v.Tokens[UnknownID] != UnknownToken {
		return fmt.Errorf("vocabulary missing reserved %q entry", UnknownToken)
	}
	if len(v.ToID) != len(v.Tokens) {
		return fmt.Errorf("vocabulary map has %d entries, token list has %d", len(v.ToID), len(v.Tokens))
	}
	for tok, id := range v.ToID {
		if id < 0 || id >= len(v.Tokens) || v.Tokens[id] != tok {
			return fmt.Errorf("vocabulary entry %q has inconsistent id %d", tok, id)
		}
	}
	return nil
}
