package websearch

import "context"

// Result is one web search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	PublishedDate string  `json:"published_date,omitempty"`
	Snippet       string  `json:"snippet"`
	Score         float32 `json:"score"`
}

// Searcher finds current web content relevant to a query. Both operations
// are idempotent reads. Implementations degrade to an empty result list on
// provider failure rather than erroring, so retrieval can continue with
// whatever partial inputs exist; the error return is reserved for misuse
// (empty query, nil receiver) rather than provider trouble.
type Searcher interface {
	// SearchRecent restricts hits to pages published in the last daysBack days.
	SearchRecent(ctx context.Context, query string, numResults, daysBack int) ([]Result, error)

	// SearchEducational biases the search toward explanatory material.
	SearchEducational(ctx context.Context, query string, numResults int) ([]Result, error)
}
