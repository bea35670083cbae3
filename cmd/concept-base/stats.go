package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/concept-base/internal/loader"
)

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize a knowledge base",
	Long: `Stats prints the node, assertion, and relation counts of a knowledge
base, the per-language node breakdown, the metadata recorded at load
time, and which derived artifacts have been built.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("name", "", "knowledge base identifier (required)")
	statsCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	statsCmd.Flags().Bool("json", false, "print stats as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(st)
	}

	fmt.Println(st.Name)
	fmt.Printf("  path:       %s\n", st.Path)
	fmt.Printf("  nodes:      %d\n", st.Nodes)
	fmt.Printf("  assertions: %d\n", st.Edges)
	fmt.Printf("  relations:  %d\n", st.Relations)
	fmt.Printf("  languages:  %s\n", formatLanguages(st.Languages))
	fmt.Printf("  indexes:    triples=%v labels=%v vocab=%v\n", st.TripleIndex, st.NodeIndex, st.Vocab)

	if len(st.Meta) > 0 {
		keys := make([]string, 0, len(st.Meta))
		for k := range st.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("  meta:")
		for _, k := range keys {
			fmt.Printf("    %s: %s\n", k, st.Meta[k])
		}
	}
	return nil
}

// formatLanguages renders language counts as "en=8 fr=2", largest first.
func formatLanguages(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})

	parts := make([]string, len(langs))
	for i, lang := range langs {
		parts[i] = fmt.Sprintf("%s=%d", lang, counts[lang])
	}
	return strings.Join(parts, " ")
}
