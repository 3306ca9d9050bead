package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/togpt/togpt/internal/search"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web with Google Custom Search",
	Long: `Run a web search and print the top results.

Requires search.google.api_key and search.google.cx in the config, or the
GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX environment variables.

Examples:
  togpt search "go generics"
  togpt search --json istanbul hava durumu`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	searcher, err := search.NewSearcher(cfg, logger, nil)
	if err != nil {
		return err
	}
	results, err := searcher.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printSearchResults(w, results)
	return nil
}
