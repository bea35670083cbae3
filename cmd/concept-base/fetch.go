package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/concept-base/internal/hub"
	"github.com/pdiddy/concept-base/internal/secrets"
	"github.com/pdiddy/concept-base/pkg/types"
)

const (
	defaultFetchTimeout = 10 * time.Minute
	defaultUserAgent    = "concept-base/0.1"
)

// --- fetch ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [dataset]",
	Short: "Download assertion dumps from the dataset hub",
	Long: `Fetch downloads ConceptNet assertion dump files from a hosted dataset
repository into the local cache. Files already present are skipped; pass
--force to download them again.

The default dataset is ` + hub.DefaultDataset + ` and the default file
pattern is ` + hub.DefaultPattern + `. Private datasets need an access
token, read from --token or from .secrets/` + secrets.HubTokenKey + `.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("revision", "", "dataset revision to resolve (default: main)")
	fetchCmd.Flags().String("file", "", "glob pattern for files to download")
	fetchCmd.Flags().Bool("force", false, "download files even when already cached")
	fetchCmd.Flags().Duration("timeout", defaultFetchTimeout, "HTTP timeout per request")
	fetchCmd.Flags().String("token", "", "hub access token")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("fetch takes at most one dataset argument")
	}
	repo := hub.DefaultDataset
	if len(args) == 1 {
		repo = args[0]
	}

	revision, _ := cmd.Flags().GetString("revision")
	if revision == "" {
		revision = viper.GetString("hub.revision")
	}
	pattern, _ := cmd.Flags().GetString("file")
	force, _ := cmd.Flags().GetBool("force")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	token, _ := cmd.Flags().GetString("token")

	cfg := types.HubConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		BaseURL:  viper.GetString("hub.base_url"),
		Revision: revision,
		Token:    secretDefault(secrets.HubTokenKey, token),
	}

	client := hub.New(cfg, logger)
	result, err := client.FetchAll(context.Background(), repo, pattern, cacheDir(cmd), force, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d of %d files failed to download", result.Failed, result.Total())
	}
	return nil
}
