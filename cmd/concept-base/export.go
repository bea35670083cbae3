package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/concept-base/internal/kb"
	"github.com/pdiddy/concept-base/internal/loader"
)

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export knowledge base assertions to a file",
	Long: `Export writes the assertions of a knowledge base to a file as YAML,
JSON, or RDF N-Triples. The same filters as query apply: relation,
language, minimum weight, and a result limit.

N-Triples IRIs are minted under the namespace recorded at load time.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("name", "", "knowledge base identifier (required)")
	exportCmd.Flags().String("kb-version", "", "knowledge base version (default: "+loader.DefaultVersion+")")
	exportCmd.Flags().String("format", "yaml", "output format: yaml, json, or ntriples")
	exportCmd.Flags().String("out", "", "output path (default: next to the database)")
	exportCmd.Flags().String("rel", "", "restrict to one relation, by name or URI")
	exportCmd.Flags().String("lang", "", "keep assertions whose concepts are both in this language")
	exportCmd.Flags().Float64("min-weight", 0, "drop assertions lighter than this weight")
	exportCmd.Flags().Int("limit", 0, "maximum assertions to export (default: all)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	relation, _ := cmd.Flags().GetString("rel")
	language, _ := cmd.Flags().GetString("lang")
	minWeight, _ := cmd.Flags().GetFloat64("min-weight")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := kb.ExportOptions{
		Relation:  relation,
		Language:  language,
		MinWeight: minWeight,
		Limit:     limit,
	}

	format, _ := cmd.Flags().GetString("format")
	path, _ := cmd.Flags().GetString("out")
	ctx := context.Background()

	switch format {
	case "yaml":
		if path == "" {
			path = store.DefaultExportPath("yaml")
		}
		err = store.ExportYAML(ctx, opts, path)
	case "json":
		if path == "" {
			path = store.DefaultExportPath("json")
		}
		err = store.ExportJSON(ctx, opts, path)
	case "ntriples", "nt":
		if path == "" {
			path = store.DefaultExportPath("nt")
		}
		err = store.ExportNTriples(ctx, opts, path)
	default:
		return fmt.Errorf("format %q must be yaml, json, or ntriples", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported to %s\n", path)
	return nil
}
