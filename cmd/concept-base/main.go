// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the concept-base CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/concept-base/internal/kb"
	"github.com/pdiddy/concept-base/internal/loader"
	"github.com/pdiddy/concept-base/internal/secrets"
	"github.com/pdiddy/concept-base/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is built in the root PersistentPreRunE; --verbose switches it
// from a no-op to a development logger.
var logger *zap.Logger

// secretDefault returns fallback when set, else the named secret.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the concept-base CLI.
var rootCmd = &cobra.Command{
	Use:   "concept-base",
	Short: "SQLite-backed interface to ConceptNet-style knowledge bases",
	Long: `concept-base builds and queries local knowledge bases from ConceptNet
assertion dumps. Dumps are fetched from a dataset hub, bulk loaded into a
SQLite database, and indexed with sorted key-value artifacts for fast
traversal and prefix lookup.

The typical pipeline is: fetch, load, index, then query/lookup/export.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		} else {
			logger = zap.NewNop()
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./concept-base.yaml or ~/.config/concept-base/config.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", defaultCacheDir(), "base directory for knowledge bases and downloaded datasets")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable structured debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("concept-base")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "concept-base"))
		}
	}

	viper.SetEnvPrefix("CONCEPT_BASE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// cacheDir resolves the cache directory: an explicit flag wins over the
// config file, which wins over the platform default.
func cacheDir(cmd *cobra.Command) string {
	if cmd.Flags().Changed("cache-dir") {
		dir, _ := cmd.Flags().GetString("cache-dir")
		return dir
	}
	if viper.IsSet("store.cache_dir") {
		return viper.GetString("store.cache_dir")
	}
	dir, _ := cmd.Flags().GetString("cache-dir")
	return dir
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "concept-base")
	}
	return ".concept-base"
}

// kbNameFromFlags derives the cache name of the knowledge base addressed
// by the --name and --kb-version flags.
func kbNameFromFlags(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = viper.GetString("load.identifier")
	}
	kbVersion, _ := cmd.Flags().GetString("kb-version")

	cfg := types.LoadConfig{Identifier: name, Version: kbVersion}
	if err := loader.ValidateConfig(cfg); err != nil {
		return "", err
	}
	return loader.KBName(cfg), nil
}

func openStore(cmd *cobra.Command) (*kb.Store, error) {
	name, err := kbNameFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	return kb.Open(types.StoreConfig{CacheDir: cacheDir(cmd)}, name, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
