package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/concept-base/internal/kb"
	"github.com/pdiddy/concept-base/internal/loader"
	"github.com/pdiddy/concept-base/pkg/types"
)

// --- lookup ---

var lookupCmd = &cobra.Command{
	Use:   "lookup [text]",
	Short: "Find concepts by label, prefix, or full-text search",
	Long: `Lookup finds concept nodes. The text is matched against labels exactly
by default; --prefix matches labels starting with the text, and --search
runs a full-text match over labels. A /c/ URI argument returns that
concept together with its sense-tagged variants.`,
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().String("name", "", "knowledge base identifier (required)")
	lookupCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	lookupCmd.Flags().String("lang", "", "restrict matches to one language")
	lookupCmd.Flags().Bool("prefix", false, "match labels by prefix")
	lookupCmd.Flags().Bool("search", false, "full-text match over labels")
	lookupCmd.Flags().Int("limit", 0, "maximum results (default: 20)")
	lookupCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a concept URI or query text")
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	language, _ := cmd.Flags().GetString("lang")
	prefix, _ := cmd.Flags().GetBool("prefix")
	search, _ := cmd.Flags().GetBool("search")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOut, _ := cmd.Flags().GetBool("json")

	concepts, err := store.Lookup(context.Background(), kb.LookupOptions{
		Query:    strings.Join(args, " "),
		Language: language,
		Prefix:   prefix,
		Search:   search,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(concepts)
	}
	formatConcepts(concepts)
	return nil
}

func formatConcepts(concepts []types.Concept) {
	if len(concepts) == 0 {
		fmt.Println("No concepts found.")
		return
	}

	fmt.Printf("%-40s %-6s %-28s %s\n", "URI", "Lang", "Label", "Sense")
	fmt.Println(strings.Repeat("-", 84))
	for _, c := range concepts {
		fmt.Printf("%-40s %-6s %-28s %s\n", c.URI, c.Language, c.Label, c.Sense)
	}
	fmt.Printf("\n%d concepts\n", len(concepts))
}
