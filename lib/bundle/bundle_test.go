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

package bundle

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfly/coref/lib/encoding"
	"github.com/lexfly/coref/lib/pairs"
	"github.com/lexfly/coref/lib/spans"
)

func newTestBundle(t *testing.T, withSpanScorer bool) *Bundle {
	t.Helper()
	vocab := encoding.BuildVocabulary([]string{"alice", "met", "bob", "she"})
	rng := rand.New(rand.NewSource(42))
	enc, err := encoding.NewEncoder(encoding.EncoderConfig{
		VocabSize:    vocab.Size(),
		EmbeddingDim: 4,
		HiddenDim:    3,
	}, rng)
	require.NoError(t, err)
	builder, err := encoding.NewSpanBuilder(4, 2, rng)
	require.NoError(t, err)
	reprDim := builder.Dim(enc.StateDim())
	pairScorer, err := pairs.NewScorer(reprDim, 6, rng)
	require.NoError(t, err)

	b := &Bundle{Vocab: vocab, Encoder: enc, Builder: builder, PairScorer: pairScorer}
	if withSpanScorer {
		b.SpanScorer, err = spans.NewScorer(reprDim, 6, rng)
		require.NoError(t, err)
	}
	return b
}

func TestBundleRoundtrip(t *testing.T) {
	dir := t.TempDir()
	orig := newTestBundle(t, true)
	require.NoError(t, Save(dir, orig))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded.SpanScorer)

	// A reloaded bundle must score identically to the one saved.
	ids := orig.Vocab.IDs([]string{"alice", "met", "bob"})
	wantStates, err := orig.Encoder.Encode(ids)
	require.NoError(t, err)
	gotStates, err := loaded.Encoder.Encode(ids)
	require.NoError(t, err)
	require.Equal(t, wantStates, gotStates)

	wantRepr, err := orig.Builder.Build(wantStates, 0, 1)
	require.NoError(t, err)
	gotRepr, err := loaded.Builder.Build(gotStates, 0, 1)
	require.NoError(t, err)
	require.Equal(t, wantRepr, gotRepr)

	wantScore, err := orig.SpanScorer.Score(wantRepr)
	require.NoError(t, err)
	gotScore, err := loaded.SpanScorer.Score(gotRepr)
	require.NoError(t, err)
	assert.Equal(t, wantScore, gotScore)
}

func TestBundleWithoutSpanScorer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, newTestBundle(t, false)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded.SpanScorer)
	assert.NoError(t, Verify(dir))
}

func TestLoadMissingBundle(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestLoadCorruptBundle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, newTestBundle(t, true)))

	// Flipping a byte in any model file must fail both Verify and Load.
	path := filepath.Join(dir, "pair_scorer.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	assert.ErrorIs(t, Verify(dir), ErrBundleCorrupt)
	_, err = Load(dir)
	assert.ErrorIs(t, err, ErrBundleCorrupt)
}

func TestLoadMissingModelFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, newTestBundle(t, true)))
	require.NoError(t, os.Remove(filepath.Join(dir, "encoder.json")))

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestLoadRejectsFormatVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, newTestBundle(t, true)))

	path := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, sonic.Unmarshal(data, &manifest))
	manifest.FormatVersion = 99
	rewritten, err := sonic.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, rewritten, 0o644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, ErrBundleCorrupt)
}

func TestSaveRejectsInvalidBundle(t *testing.T) {
	b := newTestBundle(t, true)
	b.PairScorer = nil
	assert.Error(t, Save(t.TempDir(), b))

	b = newTestBundle(t, true)
	rng := rand.New(rand.NewSource(1))
	wrong, err := pairs.NewScorer(3, 4, rng)
	require.NoError(t, err)
	b.PairScorer = wrong
	assert.Error(t, Save(t.TempDir(), b))
}

func TestSaveOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	first := newTestBundle(t, true)
	require.NoError(t, Save(dir, first))

	second := newTestBundle(t, false)
	require.NoError(t, Save(dir, second))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded.SpanScorer, "manifest must reflect the newest save")
}
