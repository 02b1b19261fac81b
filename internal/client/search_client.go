package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xunlong/api/internal/config"
)

// SearchHit is one result from the search collaborator.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

// SearchClient queries a SearXNG-compatible JSON search API. Search is
// best-effort: partial results and transient failures are acceptable, the
// evaluation stage drops weak hits anyway.
type SearchClient struct {
	httpClient *http.Client
	baseURL    string
	region     string
}

// NewSearchClient creates a new search API client
func NewSearchClient(cfg *config.SearchConfig) *SearchClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	return &SearchClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		region:  cfg.Region,
	}
}

// IsConfigured returns true if a search endpoint is set. Callers fall back
// to mock results when it is not.
func (c *SearchClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Search runs one query and returns up to maxResults hits.
func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	if !c.IsConfigured() {
		return c.mockSearch(query, maxResults), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if c.region != "" {
		params.Set("language", c.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
			Engine  string `json:"engine"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		hits = append(hits, SearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Source:  r.Engine,
		})
		if maxResults > 0 && len(hits) >= maxResults {
			break
		}
	}
	return hits, nil
}

// mockSearch returns deterministic placeholder hits so the pipeline can run
// end-to-end without a search backend.
func (c *SearchClient) mockSearch(query string, maxResults int) []SearchHit {
	n := 3
	if maxResults > 0 && maxResults < n {
		n = maxResults
	}
	hits := make([]SearchHit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, SearchHit{
			Title:   fmt.Sprintf("Overview of %s (%d)", query, i+1),
			URL:     fmt.Sprintf("https://example.com/%s/%d", url.PathEscape(query), i+1),
			Snippet: fmt.Sprintf("Background material about %s, part %d. Key facts, context and commonly cited considerations.", query, i+1),
			Source:  "mock",
		})
	}
	return hits
}
