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

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query [concept]",
	Short: "List the assertions adjacent to a concept",
	Long: `Query returns the neighbors of a concept: every assertion that starts
or ends at it, ordered by weight. The concept may be a URI (/c/en/dog)
or a bare label (dog); labels are resolved case-insensitively. Symmetric
relations such as RelatedTo match in either direction.

With --between, query instead lists the assertions connecting the
concept to a second one.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("name", "", "knowledge base identifier (required)")
	queryCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	queryCmd.Flags().String("rel", "", "restrict to one relation, by name or URI")
	queryCmd.Flags().String("lang", "", "language used to resolve bare labels")
	queryCmd.Flags().String("direction", "both", "edge direction: out, in, or both")
	queryCmd.Flags().Float64("min-weight", 0, "drop assertions lighter than this weight")
	queryCmd.Flags().Int("limit", 0, "maximum results (default: 20)")
	queryCmd.Flags().String("between", "", "list assertions between the concept and this one")
	queryCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a concept URI or label")
	}
	concept := strings.Join(args, " ")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	language, _ := cmd.Flags().GetString("lang")
	jsonOut, _ := cmd.Flags().GetBool("json")
	ctx := context.Background()

	if between, _ := cmd.Flags().GetString("between"); between != "" {
		assertions, err := store.AssertionsBetween(ctx, concept, between, language)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(assertions)
		}
		formatAssertions(assertions)
		return nil
	}

	relation, _ := cmd.Flags().GetString("rel")
	direction, _ := cmd.Flags().GetString("direction")
	minWeight, _ := cmd.Flags().GetFloat64("min-weight")
	limit, _ := cmd.Flags().GetInt("limit")

	neighbors, err := store.Neighbors(ctx, kb.NeighborOptions{
		Concept:   concept,
		Relation:  relation,
		Language:  language,
		Direction: kb.Direction(direction),
		MinWeight: minWeight,
		Limit:     limit,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(neighbors)
	}

	out, in, err := store.Degree(ctx, concept, language)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d outgoing, %d incoming assertions\n\n", concept, out, in)

	formatNeighbors(neighbors)
	return nil
}

func formatNeighbors(neighbors []kb.Neighbor) {
	if len(neighbors) == 0 {
		fmt.Println("No neighbors found.")
		return
	}

	fmt.Printf("%-4s %-4s %-20s %-44s %s\n", "Rank", "Dir", "Relation", "Concept", "Weight")
	fmt.Println(strings.Repeat("-", 84))
	for i, n := range neighbors {
		rel := strings.TrimPrefix(n.Assertion.Relation, "/r/")
		concept := fmt.Sprintf("%s (%s)", n.Node.Label, n.Node.URI)
		if len(concept) > 44 {
			concept = concept[:41] + "..."
		}
		fmt.Printf("%-4d %-4s %-20s %-44s %.2f\n", i+1, n.Direction, rel, concept, n.Assertion.Weight)
	}
	fmt.Printf("\n%d results\n", len(neighbors))
}

func formatAssertions(assertions []types.Assertion) {
	if len(assertions) == 0 {
		fmt.Println("No assertions found.")
		return
	}

	fmt.Printf("%-20s %-28s %-28s %s\n", "Relation", "Start", "End", "Weight")
	fmt.Println(strings.Repeat("-", 84))
	for _, a := range assertions {
		rel := strings.TrimPrefix(a.Relation, "/r/")
		fmt.Printf("%-20s %-28s %-28s %.2f\n", rel, a.Start, a.End, a.Weight)
	}
	fmt.Printf("\n%d results\n", len(assertions))
}
