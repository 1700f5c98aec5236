package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/windward-labs/tripsmith/pkg/model"
)

const tavilyBaseURL = "https://api.tavily.com"

// SearchClient wraps the web search provider
type SearchClient interface {
	Search(ctx context.Context, query string, includeDomains []string) ([]model.SearchResult, error)
	Extract(ctx context.Context, urls []string) ([]model.Extraction, error)
}

type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

type TavilyOption func(*TavilyClient)

func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(c *TavilyClient) {
		c.baseURL = baseURL
	}
}

func WithMaxResults(n int) TavilyOption {
	return func(c *TavilyClient) {
		c.maxResults = n
	}
}

func WithTavilyHTTPClient(client *http.Client) TavilyOption {
	return func(c *TavilyClient) {
		c.httpClient = client
	}
}

func NewTavily(apiKey string, opts ...TavilyOption) *TavilyClient {
	c := &TavilyClient{
		apiKey:     apiKey,
		baseURL:    tavilyBaseURL,
		maxResults: 5,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type tavilySearchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	Topic          string   `json:"topic"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, query string, includeDomains []string) ([]model.SearchResult, error) {
	req := tavilySearchRequest{
		APIKey:         c.apiKey,
		Query:          query,
		Topic:          "general",
		SearchDepth:    "advanced",
		MaxResults:     c.maxResults,
		IncludeDomains: includeDomains,
	}

	var resp tavilySearchResponse
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to search", goerr.V("query", query))
	}

	results := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

type tavilyExtractRequest struct {
	APIKey string   `json:"api_key"`
	URLs   []string `json:"urls"`
}

type tavilyExtractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

func (c *TavilyClient) Extract(ctx context.Context, urls []string) ([]model.Extraction, error) {
	req := tavilyExtractRequest{
		APIKey: c.apiKey,
		URLs:   urls,
	}

	var resp tavilyExtractResponse
	if err := c.post(ctx, "/extract", req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to extract", goerr.V("urls", urls))
	}

	extractions := make([]model.Extraction, 0, len(resp.Results))
	for _, r := range resp.Results {
		extractions = append(extractions, model.Extraction{
			URL:     r.URL,
			Content: r.RawContent,
		})
	}
	return extractions, nil
}

func (c *TavilyClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return goerr.New("search API returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response")
	}
	return nil
}
