package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/togpt/togpt/internal/i18n"
)

const defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"

type GoogleOptions struct {
	Client  *http.Client
	BaseURL string
	Logger  *slog.Logger
	// Language picks the language of the user-facing error message.
	Language func() string
}

// GoogleSearcher implements Searcher using the Google Custom Search API.
type GoogleSearcher struct {
	client   *http.Client
	apiKey   string
	cx       string // Custom Search Engine ID
	baseURL  string
	logger   *slog.Logger
	language func() string
}

func NewGoogleSearcher(apiKey, cx string, opts GoogleOptions) *GoogleSearcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGoogleURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Language == nil {
		opts.Language = func() string { return "auto" }
	}
	return &GoogleSearcher{
		client:   opts.Client,
		apiKey:   apiKey,
		cx:       cx,
		baseURL:  opts.BaseURL,
		logger:   opts.Logger,
		language: opts.Language,
	}
}

type googleResponse struct {
	Items []googleItem `json:"items"`
	Error *googleError `json:"error,omitempty"`
}

type googleItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Search returns up to MaxResults hits. A response without items yields an
// empty slice.
func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	results, err := g.search(ctx, query)
	if err != nil {
		g.logger.Error("google search failed", "query", query, "err", err)
		return nil, &Error{Message: i18n.T(g.language(), i18n.SearchFailed), Err: err}
	}
	return results, nil
}

func (g *GoogleSearcher) search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("google request: %w", uerr.Err)
		}
		return nil, errors.New("google request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("google http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if googleResp.Error != nil {
		if googleResp.Error.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("google search rate limited")
		}
		return nil, fmt.Errorf("google search error %d: %s", googleResp.Error.Code, googleResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	results := make([]Result, 0, len(googleResp.Items))
	for _, item := range googleResp.Items {
		if len(results) == MaxResults {
			break
		}
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
