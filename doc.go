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

// Package coref resolves within-document coreference: it groups the
// mentions of a tokenized document into chains, where every mention in
// a chain refers to the same entity.
//
// Two resolvers are provided. PipelinedResolver clusters mentions a
// detector already found; EndToEndResolver additionally detects
// mention spans itself by enumerating, scoring, and pruning candidate
// spans. Both encode the document with a learned contextual encoder,
// score mention pairs with a trained feed-forward scorer, and cluster
// with either agglomerative or greedy linking.
//
// Trained models are persisted as bundles (lib/bundle) and served
// through a lazy-loading BundleRegistry. Training lives in
// lib/training.
package coref
