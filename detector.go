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

import "context"

// MentionDetector finds candidate mentions in a document. The
// pipelined resolver consumes its output; implementations may be
// rule-based, dictionary-backed, or learned.
type MentionDetector interface {
	Detect(ctx context.Context, doc Document) ([]Mention, error)
}

// DetectorFunc adapts a function to the MentionDetector interface.
type DetectorFunc func(ctx context.Context, doc Document) ([]Mention, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, doc Document) ([]Mention, error) {
	return f(ctx, doc)
}
