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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexfly/coref"
	"github.com/lexfly/coref/lib/bundle"
)

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "List local model bundles",
	RunE:  runBundles,
}

var bundlesVerifyCmd = &cobra.Command{
	Use:   "verify <name>",
	Short: "Verify a bundle's checksums",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundlesVerify,
}

func init() {
	rootCmd.AddCommand(bundlesCmd)
	bundlesCmd.AddCommand(bundlesVerifyCmd)
}

func runBundles(cmd *cobra.Command, args []string) error {
	registry, err := coref.NewBundleRegistry(coref.BundleRegistryConfig{
		BundlesDir: viper.GetString("bundles_dir"),
	}, newLogger())
	if err != nil {
		return err
	}
	defer registry.Close()

	names := registry.List()
	if len(names) == 0 {
		fmt.Fprintln(os.Stdout, "No bundles found in", viper.GetString("bundles_dir"))
		return nil
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(os.Stdout, name)
	}
	return nil
}

func runBundlesVerify(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(viper.GetString("bundles_dir"), args[0])
	if err := bundle.Verify(dir); err != nil {
		return fmt.Errorf("bundle %s failed verification: %w", args[0], err)
	}
	fmt.Fprintf(os.Stdout, "Bundle %s verified\n", args[0])
	return nil
}
