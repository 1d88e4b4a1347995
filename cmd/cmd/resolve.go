// Copyright 2026 Lexfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexfly/coref"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <document.json>",
	Short: "Resolve coreference in a document",
	Long: `Resolve a tokenized document into coreference chains using a trained
bundle and print the result as JSON.

The document file holds a JSON object with a "sentences" array of token
arrays, and optionally a "mentions" array for pipelined resolution.
Without mentions the end-to-end resolver is used and the bundle must
carry a span scorer.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("bundle", "model", "bundle name to resolve with")
	resolveCmd.Flags().String("strategy", string(coref.StrategyAgglomerative), "clustering strategy (agglomerative, greedy)")
	resolveCmd.Flags().Float64("min-pair-score", 0.5, "clustering threshold")
	resolveCmd.Flags().Float64("min-span-score", 0.5, "span detection threshold (end-to-end only)")
	resolveCmd.Flags().Int("top-k-spans", 50, "maximum spans kept after pruning (end-to-end only)")
	resolveCmd.Flags().Int("max-token-distance", 100, "maximum token distance between paired mentions")
	resolveCmd.Flags().Int("max-sentence-distance", 5, "maximum sentence distance between paired mentions")
	resolveCmd.Flags().Int("context-window", 10, "context tokens encoded on each side of a mention")
}

// resolveInput is the on-disk document format.
type resolveInput struct {
	Sentences [][]string      `json:"sentences"`
	Mentions  []coref.Mention `json:"mentions,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	var input resolveInput
	if err := readJSONFile(args[0], &input); err != nil {
		return err
	}
	doc := coref.Document{Sentences: input.Sentences}

	options := coref.DefaultOptions()
	strategy, _ := cmd.Flags().GetString("strategy")
	options.Strategy = coref.Strategy(strategy)
	options.MinPairScore, _ = cmd.Flags().GetFloat64("min-pair-score")
	options.MinSpanScore, _ = cmd.Flags().GetFloat64("min-span-score")
	options.TopKSpans, _ = cmd.Flags().GetInt("top-k-spans")
	options.MaxTokenDistance, _ = cmd.Flags().GetInt("max-token-distance")
	options.MaxSentenceDistance, _ = cmd.Flags().GetInt("max-sentence-distance")
	options.ContextWindow, _ = cmd.Flags().GetInt("context-window")

	registry, err := coref.NewBundleRegistry(coref.BundleRegistryConfig{
		BundlesDir: viper.GetString("bundles_dir"),
	}, logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	bundleName, _ := cmd.Flags().GetString("bundle")
	b, err := registry.Get(bundleName)
	if err != nil {
		return err
	}

	var result *coref.Result
	if len(input.Mentions) > 0 {
		resolver, err := coref.NewPipelinedResolver(b, options, nil, logger)
		if err != nil {
			return err
		}
		result, err = resolver.Resolve(context.Background(), doc, input.Mentions)
		if err != nil {
			return err
		}
	} else {
		resolver, err := coref.NewEndToEndResolver(b, options, logger)
		if err != nil {
			return err
		}
		result, err = resolver.ResolveDocument(context.Background(), doc)
		if err != nil {
			return err
		}
	}

	out, err := sonic.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
