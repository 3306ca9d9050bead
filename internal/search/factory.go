package search

import (
	"fmt"
	"log/slog"

	"github.com/togpt/togpt/internal/config"
)

// NewSearcher creates the Google searcher from config. It fails when the
// key or engine id is missing.
func NewSearcher(cfg *config.Config, logger *slog.Logger, language func() string) (Searcher, error) {
	google := cfg.Search.Google
	if google.APIKey == "" {
		return nil, fmt.Errorf("google search requires GOOGLE_SEARCH_API_KEY")
	}
	if google.CX == "" {
		return nil, fmt.Errorf("google search requires GOOGLE_SEARCH_CX (Custom Search Engine ID)")
	}
	return NewGoogleSearcher(google.APIKey, google.CX, GoogleOptions{
		Logger:   logger,
		Language: language,
	}), nil
}
