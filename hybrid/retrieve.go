package hybrid

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/rag/chunking"
	"github.com/sweetpotato0/ai-tutor/rag/embedder"
	"github.com/sweetpotato0/ai-tutor/rag/reranker"
	"github.com/sweetpotato0/ai-tutor/vector"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

// Retrieval knobs. Defaults match the published configuration contract.
const (
	DefaultSearchK            = 4
	DefaultRelevanceThreshold = 0.2
	DefaultWebResultsLimit    = 3
	DefaultWebDaysBack        = 90
	DefaultRetrievalDeadline  = 8 * time.Second
)

// Retriever runs the two retrieval backends. Every failure inside a
// backend degrades to an empty result set; errors never escape to the
// state machine.
type Retriever struct {
	embedder embedder.Embedder
	store    vector.Store
	searcher websearch.Searcher
	reranker reranker.Reranker

	searchK            int
	relevanceThreshold float32
	webResultsLimit    int
	webDaysBack        int
	deadline           time.Duration

	logger *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithSearchK sets how many textbook hits to keep.
func WithSearchK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.searchK = k
		}
	}
}

// WithRelevanceThreshold drops textbook hits scoring below the threshold.
func WithRelevanceThreshold(t float64) RetrieverOption {
	return func(r *Retriever) {
		r.relevanceThreshold = float32(t)
	}
}

// WithWebResultsLimit caps web results per turn.
func WithWebResultsLimit(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.webResultsLimit = n
		}
	}
}

// WithWebDaysBack sets the recency window for web search.
func WithWebDaysBack(days int) RetrieverOption {
	return func(r *Retriever) {
		if days > 0 {
			r.webDaysBack = days
		}
	}
}

// WithRetrievalDeadline bounds the combined fan-out.
func WithRetrievalDeadline(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.deadline = d
		}
	}
}

// WithReranker reorders textbook hits before the relevance cap is applied.
func WithReranker(rr reranker.Reranker) RetrieverOption {
	return func(r *Retriever) {
		r.reranker = rr
	}
}

// NewRetriever creates a Retriever. The searcher may be nil when web
// retrieval is disabled; SearchWeb then returns nothing.
func NewRetriever(emb embedder.Embedder, store vector.Store, searcher websearch.Searcher, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder:           emb,
		store:              store,
		searcher:           searcher,
		searchK:            DefaultSearchK,
		relevanceThreshold: DefaultRelevanceThreshold,
		webResultsLimit:    DefaultWebResultsLimit,
		webDaysBack:        DefaultWebDaysBack,
		deadline:           DefaultRetrievalDeadline,
		logger:             logging.WithComponent("retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IndexSize reports how many chunks the store holds; 0 on store failure.
func (r *Retriever) IndexSize(ctx context.Context) int {
	if r.store == nil {
		return 0
	}
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warn("index size check failed", "error", err)
		return 0
	}
	return n
}

// SearchPDF embeds the query and searches the textbook index. A subject
// inferred from the query narrows the search when present.
func (r *Retriever) SearchPDF(ctx context.Context, query string) []*vector.Result {
	if r.embedder == nil || r.store == nil {
		return nil
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, skipping textbook retrieval", "error", err)
		return nil
	}

	var filter map[string]string
	if subject := chunking.InferSubjectFromText(query); subject != "" {
		filter = map[string]string{"subject": subject}
	}

	results, err := r.store.Search(ctx, vec, r.searchK, filter)
	if err != nil {
		r.logger.Warn("vector search failed, skipping textbook retrieval", "error", err)
		return nil
	}
	// A subject filter that matches nothing should not blank out the
	// textbook context entirely.
	if len(results) == 0 && filter != nil {
		results, err = r.store.Search(ctx, vec, r.searchK, nil)
		if err != nil {
			r.logger.Warn("vector search failed, skipping textbook retrieval", "error", err)
			return nil
		}
	}

	kept := results[:0]
	for _, res := range results {
		if res.Score >= r.relevanceThreshold {
			kept = append(kept, res)
		}
	}
	if r.reranker != nil && len(kept) > 1 {
		ranked, err := r.reranker.Rank(ctx, vec, kept)
		if err != nil {
			r.logger.Warn("reranking failed, keeping backend order", "error", err)
		} else {
			kept = ranked
		}
	}
	if len(kept) > r.searchK {
		kept = kept[:r.searchK]
	}
	return kept
}

// SearchWeb queries the web provider. The recency signal picks the
// time-windowed search; otherwise the educational search runs.
func (r *Retriever) SearchWeb(ctx context.Context, query string, recency bool) []websearch.Result {
	if r.searcher == nil {
		return nil
	}

	var (
		results []websearch.Result
		err     error
	)
	if recency {
		results, err = r.searcher.SearchRecent(ctx, query, r.webResultsLimit, r.webDaysBack)
	} else {
		results, err = r.searcher.SearchEducational(ctx, query, r.webResultsLimit)
	}
	if err != nil {
		r.logger.Warn("web search failed, continuing without web sources", "error", err)
		return nil
	}
	if len(results) > r.webResultsLimit {
		results = results[:r.webResultsLimit]
	}
	return results
}

// SearchBoth fans out to both backends concurrently under the retrieval
// deadline. The tasks share no state and either may come back empty.
func (r *Retriever) SearchBoth(ctx context.Context, query string, recency bool) ([]*vector.Result, []websearch.Result) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	var (
		pdf []*vector.Result
		web []websearch.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pdf = r.SearchPDF(gctx, query)
		return nil
	})
	g.Go(func() error {
		web = r.SearchWeb(gctx, query, recency)
		return nil
	})
	_ = g.Wait()
	return pdf, web
}
