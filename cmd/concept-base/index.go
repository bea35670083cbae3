package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/concept-base/internal/kb/vocab"
	"github.com/pdiddy/concept-base/internal/loader"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the traversal indexes and vocabulary for a knowledge base",
	Long: `Index derives the sorted key-value artifacts from a loaded knowledge
base: the triple index serving neighbor traversal, the label index
serving prefix lookup, and the vocabulary database of term counts.

Artifacts already derived are left alone; pass --rebuild to discard and
derive them again after loading more dumps.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("name", "", "knowledge base identifier (required)")
	indexCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	indexCmd.Flags().Bool("rebuild", false, "discard and rebuild existing indexes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rebuild, _ := cmd.Flags().GetBool("rebuild")
	ctx := context.Background()

	if err := store.BuildTripleIndex(ctx, os.Stdout, rebuild); err != nil {
		return err
	}
	if err := store.BuildNodeIndex(ctx, os.Stdout, rebuild); err != nil {
		return err
	}
	if rebuild {
		os.Remove(store.VocabPath())
	}
	if _, err := vocab.Build(ctx, store, os.Stdout); err != nil {
		return err
	}
	return nil
}
