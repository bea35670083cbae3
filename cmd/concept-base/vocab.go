package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/concept-base/internal/kb/vocab"
	"github.com/pdiddy/concept-base/internal/loader"
)

// --- vocab ---

var vocabCmd = &cobra.Command{
	Use:   "vocab [term]",
	Short: "Inspect the vocabulary of a knowledge base",
	Long: `Vocab reads the vocabulary database built by the index command. With a
term argument it prints the term's node count and corpus frequency; with
no argument it lists the most frequent terms.`,
	RunE: runVocab,
}

func init() {
	vocabCmd.Flags().String("name", "", "knowledge base identifier (required)")
	vocabCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	vocabCmd.Flags().String("lang", "", "restrict to one language")
	vocabCmd.Flags().Int("top", 20, "number of terms to list")
	vocabCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(vocabCmd)
}

func runVocab(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := vocab.Open(store.VocabPath())
	if err != nil {
		return err
	}
	defer db.Close()

	language, _ := cmd.Flags().GetString("lang")
	jsonOut, _ := cmd.Flags().GetBool("json")
	ctx := context.Background()

	if len(args) > 0 {
		if language == "" {
			return fmt.Errorf("term lookup requires --lang")
		}
		entry, err := db.Lookup(ctx, strings.Join(args, " "), language)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(entry)
		}
		fmt.Printf("%s (%s): %d nodes, frequency %.6f\n", entry.Term, entry.Language, entry.NodeCount, entry.Freq)
		return nil
	}

	top, _ := cmd.Flags().GetInt("top")
	entries, err := db.Top(ctx, top, language)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("Vocabulary is empty.")
		return nil
	}
	fmt.Printf("%-4s %-28s %-6s %-8s %s\n", "Rank", "Term", "Lang", "Nodes", "Freq")
	fmt.Println(strings.Repeat("-", 60))
	for i, e := range entries {
		fmt.Printf("%-4d %-28s %-6s %-8d %.6f\n", i+1, e.Term, e.Language, e.NodeCount, e.Freq)
	}
	fmt.Printf("\n%d terms\n", len(entries))
	return nil
}
