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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set from main via goreleaser ldflags.
var Version = "dev"

var bundlesDir string

var rootCmd = &cobra.Command{
	Use:   "coref",
	Short: "Within-document coreference resolution",
	Long: `Coref trains and serves coreference resolution models: it groups the
mentions of a document into chains that refer to the same entity.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	defaultBundlesDir := "bundles"
	if home, err := os.UserHomeDir(); err == nil {
		defaultBundlesDir = filepath.Join(home, ".coref", "bundles")
	}

	rootCmd.PersistentFlags().StringVar(&bundlesDir, "bundles-dir", defaultBundlesDir, "directory holding model bundles")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	mustBindPFlag("bundles_dir", rootCmd.PersistentFlags().Lookup("bundles-dir"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Version = Version
}

func initConfig() {
	viper.SetConfigName("coref")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".coref"))
	}
	viper.SetEnvPrefix("COREF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// newLogger builds the process logger from the configured level.
func newLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.Set(viper.GetString("log.level")); err != nil {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
