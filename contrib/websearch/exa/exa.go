package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

const (
	defaultEndpoint = "https://api.exa.ai/search"
	defaultTimeout  = 10 * time.Second

	// educationalPrefix steers neural search toward explanatory content.
	educationalPrefix = "educational explanation tutorial: "

	maxSnippetChars = 2000
)

// Client implements websearch.Searcher against the Exa search API. Provider
// failures are logged and reported as empty result lists so callers can
// proceed with partial retrieval.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

var _ websearch.Searcher = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint (tests, proxies).
func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates an Exa search client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("exa api key cannot be empty")
	}
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchRequest struct {
	Query              string          `json:"query"`
	NumResults         int             `json:"numResults"`
	Type               string          `json:"type"`
	UseAutoprompt      bool            `json:"useAutoprompt"`
	StartPublishedDate string          `json:"startPublishedDate,omitempty"`
	Contents           contentsRequest `json:"contents"`
}

type contentsRequest struct {
	Text       textRequest       `json:"text"`
	Highlights highlightsRequest `json:"highlights"`
}

type textRequest struct {
	MaxCharacters int `json:"maxCharacters"`
}

type highlightsRequest struct {
	NumSentences int `json:"numSentences"`
}

type searchResponse struct {
	Results []struct {
		Title         string   `json:"title"`
		URL           string   `json:"url"`
		PublishedDate string   `json:"publishedDate"`
		Score         float32  `json:"score"`
		Text          string   `json:"text"`
		Highlights    []string `json:"highlights"`
	} `json:"results"`
}

// SearchRecent finds pages published within the last daysBack days.
func (c *Client) SearchRecent(ctx context.Context, query string, numResults, daysBack int) ([]websearch.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	req := searchRequest{
		Query:         query,
		NumResults:    numResults,
		Type:          "auto",
		UseAutoprompt: true,
		Contents: contentsRequest{
			Text:       textRequest{MaxCharacters: maxSnippetChars},
			Highlights: highlightsRequest{NumSentences: 3},
		},
	}
	if daysBack > 0 {
		start := time.Now().AddDate(0, 0, -daysBack)
		req.StartPublishedDate = start.Format("2006-01-02")
	}
	return c.search(ctx, req), nil
}

// SearchEducational runs a neural search with an explanatory prefix.
func (c *Client) SearchEducational(ctx context.Context, query string, numResults int) ([]websearch.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	req := searchRequest{
		Query:         educationalPrefix + query,
		NumResults:    numResults,
		Type:          "neural",
		UseAutoprompt: true,
		Contents: contentsRequest{
			Text:       textRequest{MaxCharacters: maxSnippetChars},
			Highlights: highlightsRequest{NumSentences: 3},
		},
	}
	return c.search(ctx, req), nil
}

// search executes the request, mapping every failure to an empty list.
func (c *Client) search(ctx context.Context, req searchRequest) []websearch.Result {
	logger := logging.WithComponent("websearch")

	body, err := json.Marshal(req)
	if err != nil {
		logger.Error("encode search request", "error", err)
		return nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		logger.Error("build search request", "error", err)
		return nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Warn("web search failed", "query", req.Query, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("web search returned non-200",
			"query", req.Query, "status", resp.StatusCode, "body", string(msg))
		return nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Warn("decode search response", "error", err)
		return nil
	}

	results := make([]websearch.Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		snippet := r.Text
		if snippet == "" && len(r.Highlights) > 0 {
			snippet = strings.Join(r.Highlights, " ")
		}
		results = append(results, websearch.Result{
			Title:         r.Title,
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Snippet:       snippet,
			Score:         clampScore(r.Score),
		})
	}
	logger.Debug("web search complete", "query", req.Query, "results", len(results))
	return results
}

func clampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
