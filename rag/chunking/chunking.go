package chunking

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/ai-tutor/rag/document"
	"github.com/sweetpotato0/ai-tutor/rag/preprocess"
	"github.com/sweetpotato0/ai-tutor/rag/tokenizer"
)

// Defaults for chunk sizing and quality filtering.
const (
	DefaultChunkTokens   = 800
	DefaultOverlapTokens = 100
	DefaultMinChars      = 100
	DefaultMaxDigitRatio = 0.5
)

// separators, in descending structural priority. The chunker descends to
// the next separator only when a segment still exceeds the token target.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// Chunker splits page-level documents into overlapping, token-bounded,
// sentence-aware chunks with enriched metadata. Chunking is a pure function
// of the document and configuration.
type Chunker struct {
	tok           tokenizer.Tokenizer
	chunkTokens   int
	overlapTokens int
	minChars      int
	maxDigitRatio float64
}

// Option customizes the chunker.
type Option func(*Chunker)

// WithTokenizer sets the tokenizer used for sizing. Without one, sizes are
// estimated at four characters per token.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(c *Chunker) {
		c.tok = tok
	}
}

// WithChunkTokens sets the token size target per chunk.
func WithChunkTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens > 0 {
			c.chunkTokens = tokens
		}
	}
}

// WithOverlapTokens sets how many tokens of the previous chunk are prepended
// to the next one.
func WithOverlapTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// WithMinChars drops chunks whose stripped text is shorter than this.
func WithMinChars(chars int) Option {
	return func(c *Chunker) {
		if chars >= 0 {
			c.minChars = chars
		}
	}
}

// WithMaxDigitRatio drops chunks dominated by digits (page indexes, answer
// keys, tables of contents).
func WithMaxDigitRatio(ratio float64) Option {
	return func(c *Chunker) {
		if ratio > 0 {
			c.maxDigitRatio = ratio
		}
	}
}

// New creates a chunker with the published defaults.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkTokens:   DefaultChunkTokens,
		overlapTokens: DefaultOverlapTokens,
		minChars:      DefaultMinChars,
		maxDigitRatio: DefaultMaxDigitRatio,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type span struct {
	start, end int
}

type pageBoundary struct {
	offset int
	page   int
	method document.Extraction
}

// Chunk splits the document into bounded, metadata-enriched pieces.
func (c *Chunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	text, boundaries := concatenate(doc.Pages)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	spans := c.split(text, span{0, len(text)}, 0)
	spans = c.mergeAdjacent(text, spans)

	subject := InferSubject(doc.Source)
	chapter, section := "", ""

	chunks := make([]document.Chunk, 0, len(spans))
	prevCore := ""
	for _, sp := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		core := strings.TrimSpace(text[sp.start:sp.end])
		if ch := DetectChapter(core); ch != "" {
			chapter = ch
		}
		if sec := DetectSection(core); sec != "" {
			section = sec
		}

		if len(core) < c.minChars || preprocess.DigitRatio(core) > c.maxDigitRatio {
			continue
		}

		content := core
		if prevCore != "" && c.overlapTokens > 0 {
			if tail := c.overlapTail(prevCore); tail != "" {
				content = tail + " " + core
			}
		}
		prevCore = core

		page, method := pageAt(boundaries, sp.start)
		meta := map[string]any{
			"source":       doc.Source,
			"page":         page,
			"extraction":   string(method),
			"content_type": ClassifyContentType(core),
			"has_math":     HasMath(core),
		}
		if subject != "" {
			meta["subject"] = subject
		}
		if chapter != "" {
			meta["chapter"] = chapter
		}
		if section != "" {
			meta["section"] = section
		}

		chunks = append(chunks, document.Chunk{
			ID:       document.ChunkID(doc.Source, page, content),
			Source:   doc.Source,
			Page:     page,
			Content:  content,
			Metadata: meta,
		})
	}

	// renumber survivors
	for i := range chunks {
		chunks[i].Ordinal = i
		chunks[i].Metadata["chunk_index"] = i
		chunks[i].Metadata["total_chunks"] = len(chunks)
	}
	return chunks, nil
}

// concatenate joins page text in order, recording where each page starts so
// chunks can be mapped back to the page of their first character.
func concatenate(pages []document.Page) (string, []pageBoundary) {
	var sb strings.Builder
	var boundaries []pageBoundary
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		boundaries = append(boundaries, pageBoundary{
			offset: sb.Len(),
			page:   p.Number,
			method: p.Extraction,
		})
		sb.WriteString(p.Content)
	}
	return sb.String(), boundaries
}

func pageAt(boundaries []pageBoundary, offset int) (int, document.Extraction) {
	idx := sort.Search(len(boundaries), func(i int) bool {
		return boundaries[i].offset > offset
	}) - 1
	if idx < 0 {
		if len(boundaries) == 0 {
			return 1, document.ExtractionNative
		}
		idx = 0
	}
	return boundaries[idx].page, boundaries[idx].method
}

// split recursively divides a span by the separator hierarchy until every
// piece fits the token target.
func (c *Chunker) split(text string, sp span, sepIdx int) []span {
	if c.countTokens(text[sp.start:sp.end]) <= c.chunkTokens {
		return []span{sp}
	}
	if sepIdx >= len(separators) {
		return c.hardSplit(text, sp)
	}

	pieces := splitBySep(text, sp, separators[sepIdx])
	if len(pieces) == 1 {
		return c.split(text, sp, sepIdx+1)
	}

	var out []span
	for _, piece := range pieces {
		if c.countTokens(text[piece.start:piece.end]) > c.chunkTokens {
			out = append(out, c.split(text, piece, sepIdx+1)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// splitBySep divides a span on a separator, keeping the separator attached
// to the piece it terminates.
func splitBySep(text string, sp span, sep string) []span {
	var out []span
	start := sp.start
	for start < sp.end {
		idx := strings.Index(text[start:sp.end], sep)
		if idx < 0 {
			out = append(out, span{start, sp.end})
			break
		}
		end := start + idx + len(sep)
		out = append(out, span{start, end})
		start = end
	}
	if len(out) == 0 {
		out = append(out, sp)
	}
	return out
}

// hardSplit cuts a span into fixed-size windows when no separator helps.
func (c *Chunker) hardSplit(text string, sp span) []span {
	target := c.chunkTokens * 4
	var out []span
	start := sp.start
	for start < sp.end {
		end := start + target
		if end >= sp.end {
			out = append(out, span{start, sp.end})
			break
		}
		// back off to a rune boundary
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		out = append(out, span{start, end})
		start = end
	}
	return out
}

// mergeAdjacent greedily coalesces consecutive small pieces into windows
// that approach the token target. Pieces are contiguous, so a merged group
// is a single span of the original text.
func (c *Chunker) mergeAdjacent(text string, spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	var out []span
	cur := spans[0]
	curTokens := c.countTokens(text[cur.start:cur.end])
	for _, sp := range spans[1:] {
		t := c.countTokens(text[sp.start:sp.end])
		if curTokens+t <= c.chunkTokens {
			cur.end = sp.end
			curTokens += t
			continue
		}
		out = append(out, cur)
		cur = sp
		curTokens = t
	}
	out = append(out, cur)
	return out
}

// overlapTail returns the trailing overlap window of the previous chunk,
// advanced to the first sentence boundary inside the window when one exists.
func (c *Chunker) overlapTail(prev string) string {
	window := c.overlapTokens * 4
	if len(prev) <= window {
		return sentenceSnap(prev)
	}
	start := len(prev) - window
	for start < len(prev) && !utf8.RuneStart(prev[start]) {
		start++
	}
	return sentenceSnap(prev[start:])
}

func sentenceSnap(tail string) string {
	best := -1
	for _, term := range []string{". ", "! ", "? "} {
		if idx := strings.Index(tail, term); idx >= 0 {
			end := idx + len(term)
			if best == -1 || end < best {
				best = end
			}
		}
	}
	if best > 0 && best < len(tail) {
		return strings.TrimSpace(tail[best:])
	}
	return strings.TrimSpace(tail)
}

func (c *Chunker) countTokens(s string) int {
	if c.tok != nil {
		return c.tok.CountTokens(s)
	}
	return tokenizer.EstimateTokens(s)
}
