// Package hybrid implements the answering pipeline: route a question to
// the textbook index, the web, both, or neither; retrieve concurrently;
// fuse the results into one grounded context; stream the generated answer.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
)

// Route says which retrieval backends a turn consults.
type Route string

const (
	RouteNone    Route = "NONE"
	RoutePDFOnly Route = "PDF_ONLY"
	RouteWebOnly Route = "WEB_ONLY"
	RouteBoth    Route = "BOTH"
)

// ParseRoute validates a route label.
func ParseRoute(s string) (Route, bool) {
	switch Route(strings.TrimSpace(strings.ToUpper(s))) {
	case RouteNone:
		return RouteNone, true
	case RoutePDFOnly:
		return RoutePDFOnly, true
	case RouteWebOnly:
		return RouteWebOnly, true
	case RouteBoth:
		return RouteBoth, true
	}
	return "", false
}

var (
	greetingWords = map[string]struct{}{
		"hello": {}, "hi": {}, "hey": {}, "yo": {}, "greetings": {},
		"morning": {}, "afternoon": {}, "evening": {}, "thanks": {},
		"thank": {}, "bye": {}, "goodbye": {},
	}

	recencyWords = []string{
		"latest", "recent", "recently", "current", "currently", "news",
		"today", "this year", "this month", "this week", "nowadays",
		"breaking", "update", "updates",
	}

	textbookWords = []string{
		"chapter", "section", "exercise", "exercises", "textbook",
		"lesson", "syllabus", "problem set", "worksheet",
	}

	sectionNumberRe = regexp.MustCompile(`\b\d+\.\d+\b`)
	yearRe          = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	wordRe          = regexp.MustCompile(`[a-z']+`)
)

const classifierPrompt = `You route a student's question to retrieval backends.
Reply with exactly one token and nothing else:
NONE - small talk, no retrieval needed
PDF_ONLY - answerable from ingested textbook material
WEB_ONLY - needs recent or real-world information
BOTH - needs textbook material and recent information

Question: %s`

// Router decides the route for a query. Deterministic keyword rules run
// first; only genuinely ambiguous queries reach the LLM classifier.
type Router struct {
	classifier llm.Generator
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClassifier provides the fallback LLM classifier. Without one,
// ambiguous queries go straight to the deterministic default.
func WithClassifier(g llm.Generator) RouterOption {
	return func(r *Router) {
		r.classifier = g
	}
}

// WithClassifierTimeout bounds the classifier call.
func WithClassifierTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the time source used by the recency rule.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter creates a Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		timeout: 10 * time.Second,
		now:     time.Now,
		logger:  logging.WithComponent("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decision carries the chosen route plus the signals that produced it;
// downstream nodes reuse the recency signal to pick the web search mode.
type Decision struct {
	Route   Route
	Recency bool
	ByRule  bool
}

// Decide picks a route for the query. indexSize steers the fallback when
// the classifier is unavailable or answers nonsense.
func (r *Router) Decide(ctx context.Context, query string, indexSize int) Decision {
	normalized := strings.ToLower(strings.TrimSpace(query))

	recency := r.matchRecency(normalized)
	textbook := matchTextbook(normalized)

	switch {
	case matchGreeting(normalized):
		return Decision{Route: RouteNone, ByRule: true}
	case recency && !textbook:
		return Decision{Route: RouteWebOnly, Recency: true, ByRule: true}
	case textbook && !recency:
		return Decision{Route: RoutePDFOnly, ByRule: true}
	}

	route := r.classify(ctx, query, indexSize)
	return Decision{Route: route, Recency: recency}
}

func (r *Router) classify(ctx context.Context, query string, indexSize int) Route {
	fallback := RoutePDFOnly
	if indexSize == 0 {
		fallback = RouteWebOnly
	}

	if r.classifier == nil {
		return fallback
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.classifier.Generate(cctx, &llm.Request{
		Messages: []*message.Message{
			message.NewMessage(message.RoleUser, fmt.Sprintf(classifierPrompt, query)),
		},
	})
	if err != nil {
		r.logger.Warn("route classifier failed, using fallback", "error", err, "fallback", fallback)
		return fallback
	}
	route, ok := ParseRoute(reply)
	if !ok {
		r.logger.Warn("route classifier returned invalid label", "label", reply, "fallback", fallback)
		return fallback
	}
	return route
}

func matchGreeting(q string) bool {
	if strings.Contains(q, "?") {
		return false
	}
	words := wordRe.FindAllString(q, -1)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if _, ok := greetingWords[w]; ok {
			return true
		}
	}
	return false
}

func (r *Router) matchRecency(q string) bool {
	for _, kw := range recencyWords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	cutoff := r.now().Year() - 1
	for _, tok := range yearRe.FindAllString(q, -1) {
		if year, err := strconv.Atoi(tok); err == nil && year >= cutoff {
			return true
		}
	}
	return false
}

func matchTextbook(q string) bool {
	for _, kw := range textbookWords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return sectionNumberRe.MatchString(q)
}
