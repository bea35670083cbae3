package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/concept-base/internal/kb"
	"github.com/pdiddy/concept-base/internal/loader"
	"github.com/pdiddy/concept-base/pkg/types"
)

// --- load ---

var loadCmd = &cobra.Command{
	Use:   "load [files...]",
	Short: "Build a knowledge base from assertion dump files",
	Long: `Load parses ConceptNet assertion dumps (CSV or gzipped CSV) and bulk
loads them into a SQLite knowledge base under the cache directory.
Nodes, relations, and assertions are deduplicated across files, so the
command can be re-run with additional dumps to extend an existing base.

Dump rows are the five-column assertion format: assertion URI, relation
URI, start concept URI, end concept URI, and a JSON metadata column.
Rows can be filtered by concept language and by minimum weight.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().String("name", "", "knowledge base identifier (required)")
	loadCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	loadCmd.Flags().String("namespace", "", "URI namespace recorded in the knowledge base")
	loadCmd.Flags().StringSlice("lang", nil, "keep only assertions whose concepts are all in these languages")
	loadCmd.Flags().Float64("min-weight", 0, "drop assertions lighter than this weight")
	loadCmd.Flags().Int("batch-size", 0, "assertions per transaction (default: 1000)")
	loadCmd.Flags().Int("workers", 0, "parallel parse workers (default: 4)")
	rootCmd.AddCommand(loadCmd)
}

func loadConfigFromFlags(cmd *cobra.Command) types.LoadConfig {
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = viper.GetString("load.identifier")
	}
	kbVersion, _ := cmd.Flags().GetString("kb-version")
	namespace, _ := cmd.Flags().GetString("namespace")
	languages, _ := cmd.Flags().GetStringSlice("lang")
	minWeight, _ := cmd.Flags().GetFloat64("min-weight")
	workers, _ := cmd.Flags().GetInt("workers")

	return types.LoadConfig{
		Identifier: name,
		Version:    kbVersion,
		Namespace:  namespace,
		Languages:  languages,
		MinWeight:  minWeight,
		Workers:    workers,
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more assertion dump files")
	}

	cfg := loadConfigFromFlags(cmd)
	if err := loader.ValidateConfig(cfg); err != nil {
		return err
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	store, err := kb.Create(types.StoreConfig{
		CacheDir:  cacheDir(cmd),
		BatchSize: batchSize,
	}, loader.KBName(cfg), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ld := loader.New(cfg, logger)
	if _, err := store.LoadAssertions(context.Background(), ld, cfg, args, os.Stdout); err != nil {
		return err
	}

	fmt.Printf("\nknowledge base %s ready at %s\n", store.Name(), store.Path())
	return nil
}
