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

// Package bundle persists trained resolver models as a directory of
// JSON files with a checksummed manifest, and loads them back with
// shape validation so a corrupt or truncated bundle fails loudly
// instead of producing garbage scores.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/multierr"

	"github.com/lexfly/coref/lib/encoding"
	"github.com/lexfly/coref/lib/pairs"
	"github.com/lexfly/coref/lib/spans"
)

const (
	// FormatVersion is written into every manifest; loading rejects
	// bundles from a different format.
	FormatVersion = 1

	manifestFile   = "manifest.json"
	vocabFile      = "vocab.json"
	encoderFile    = "encoder.json"
	spanScorerFile = "span_scorer.json"
	pairScorerFile = "pair_scorer.json"
)

var (
	// ErrBundleNotFound means the bundle directory or one of its files
	// does not exist.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrBundleCorrupt means a file exists but fails checksum, JSON, or
	// shape validation.
	ErrBundleCorrupt = errors.New("bundle corrupt")
)

// Bundle is a complete trained resolver: vocabulary, encoder, span
// representation builder, and both scorers. The span scorer is nil for
// models trained on pre-detected mentions only.
type Bundle struct {
	Vocab      *encoding.Vocabulary
	Encoder    *encoding.Encoder
	Builder    *encoding.SpanBuilder
	SpanScorer *spans.Scorer
	PairScorer *pairs.Scorer
}

// Validate checks the components agree on dimensions.
func (b *Bundle) Validate() error {
	if b.Vocab == nil || b.Encoder == nil || b.Builder == nil || b.PairScorer == nil {
		return fmt.Errorf("bundle missing required components")
	}
	if err := b.Vocab.Validate(); err != nil {
		return fmt.Errorf("vocabulary: %w", err)
	}
	if b.Vocab.Size() != b.Encoder.Config().VocabSize {
		return fmt.Errorf("vocabulary size %d does not match encoder vocab size %d",
			b.Vocab.Size(), b.Encoder.Config().VocabSize)
	}
	reprDim := b.Builder.Dim(b.Encoder.StateDim())
	if b.PairScorer.ReprDim() != reprDim {
		return fmt.Errorf("pair scorer expects representations of %d, builder produces %d",
			b.PairScorer.ReprDim(), reprDim)
	}
	if b.SpanScorer != nil && b.SpanScorer.InputDim() != reprDim {
		return fmt.Errorf("span scorer expects representations of %d, builder produces %d",
			b.SpanScorer.InputDim(), reprDim)
	}
	return nil
}

// Manifest describes a saved bundle and carries a SHA-256 digest per
// file so tampering or truncation is detected at load time.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Checksums     map[string]string `json:"checksums"`
}

// encoderEnvelope is the on-disk form of encoder.json: the contextual
// encoder and the span builder travel together because span
// representations are meaningless without both.
type encoderEnvelope struct {
	Encoder encoding.EncoderState     `json:"encoder"`
	Builder encoding.SpanBuilderState `json:"builder"`
}

// Save writes the bundle into dir, creating it if needed. Existing
// bundle files in dir are overwritten.
func Save(dir string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid bundle: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}

	manifest := Manifest{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Checksums:     make(map[string]string),
	}

	files := map[string]any{
		vocabFile:   b.Vocab,
		encoderFile: encoderEnvelope{Encoder: b.Encoder.State(), Builder: b.Builder.State()},
	}
	files[pairScorerFile] = b.PairScorer.State()
	if b.SpanScorer != nil {
		files[spanScorerFile] = b.SpanScorer.State()
	}

	for name, payload := range files {
		sum, err := writeJSON(filepath.Join(dir, name), payload)
		if err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		manifest.Checksums[name] = sum
	}
	if _, err := writeJSON(filepath.Join(dir, manifestFile), manifest); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Load reads a bundle back from dir, verifying the manifest checksums
// and component shapes. It returns ErrBundleNotFound for a missing
// bundle and ErrBundleCorrupt for one that fails verification.
func Load(dir string) (*Bundle, error) {
	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	if manifest.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d",
			ErrBundleCorrupt, manifest.FormatVersion, FormatVersion)
	}

	var vocab encoding.Vocabulary
	if err := readVerified(dir, vocabFile, manifest, &vocab); err != nil {
		return nil, err
	}
	var env encoderEnvelope
	if err := readVerified(dir, encoderFile, manifest, &env); err != nil {
		return nil, err
	}
	var pairState pairs.ScorerState
	if err := readVerified(dir, pairScorerFile, manifest, &pairState); err != nil {
		return nil, err
	}

	b := &Bundle{Vocab: &vocab}
	var cerr error
	b.Encoder, cerr = encoding.EncoderFromState(env.Encoder)
	if cerr != nil {
		return nil, fmt.Errorf("%w: encoder: %v", ErrBundleCorrupt, cerr)
	}
	b.Builder, cerr = encoding.SpanBuilderFromState(env.Builder)
	if cerr != nil {
		return nil, fmt.Errorf("%w: span builder: %v", ErrBundleCorrupt, cerr)
	}
	b.PairScorer, cerr = pairs.ScorerFromState(pairState)
	if cerr != nil {
		return nil, fmt.Errorf("%w: pair scorer: %v", ErrBundleCorrupt, cerr)
	}

	if _, ok := manifest.Checksums[spanScorerFile]; ok {
		var spanState spans.ScorerState
		if err := readVerified(dir, spanScorerFile, manifest, &spanState); err != nil {
			return nil, err
		}
		b.SpanScorer, cerr = spans.ScorerFromState(spanState)
		if cerr != nil {
			return nil, fmt.Errorf("%w: span scorer: %v", ErrBundleCorrupt, cerr)
		}
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleCorrupt, err)
	}
	return b, nil
}

// Verify checks the bundle at dir against its manifest without
// deserializing the model, aggregating every mismatch.
func Verify(dir string) error {
	manifest, err := loadManifest(dir)
	if err != nil {
		return err
	}
	var errs error
	for name, want := range manifest.Checksums {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				errs = multierr.Append(errs, fmt.Errorf("%w: missing %s", ErrBundleNotFound, name))
			} else {
				errs = multierr.Append(errs, fmt.Errorf("reading %s: %w", name, err))
			}
			continue
		}
		if got := digest(data); got != want {
			errs = multierr.Append(errs, fmt.Errorf("%w: checksum mismatch for %s", ErrBundleCorrupt, name))
		}
	}
	return errs
}

func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, dir)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var manifest Manifest
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrBundleCorrupt, err)
	}
	if manifest.Checksums == nil {
		return nil, fmt.Errorf("%w: manifest has no checksums", ErrBundleCorrupt)
	}
	return &manifest, nil
}

func readVerified(dir, name string, manifest *Manifest, out any) error {
	want, ok := manifest.Checksums[name]
	if !ok {
		return fmt.Errorf("%w: %s not listed in manifest", ErrBundleCorrupt, name)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: missing %s", ErrBundleNotFound, name)
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if got := digest(data); got != want {
		return fmt.Errorf("%w: checksum mismatch for %s", ErrBundleCorrupt, name)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBundleCorrupt, name, err)
	}
	return nil
}

func writeJSON(path string, payload any) (string, error) {
	data, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return digest(data), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
