package hybrid

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/sweetpotato0/ai-tutor/llm"
)

// fixedClassifier returns a canned label and records whether it was asked.
type fixedClassifier struct {
	label  string
	err    error
	called bool
}

func (f *fixedClassifier) Generate(context.Context, *llm.Request) (string, error) {
	f.called = true
	return f.label, f.err
}

func (f *fixedClassifier) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		out, err := f.Generate(ctx, req)
		yield(out, err)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestDecideRules(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Route
		recency bool
	}{
		{name: "greeting", query: "Hello", want: RouteNone},
		{name: "greeting with thanks", query: "thanks a lot", want: RouteNone},
		{name: "recency keyword", query: "What are the latest developments in quantum computing?", want: RouteWebOnly, recency: true},
		{name: "recent year", query: "What happened in physics in 2024?", want: RouteWebOnly, recency: true},
		{name: "textbook keyword", query: "Summarize chapter 4 for me", want: RoutePDFOnly},
		{name: "section number", query: "Explain 3.1 again please", want: RoutePDFOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &fixedClassifier{label: "BOTH"}
			r := NewRouter(WithClassifier(classifier), WithClock(fixedClock))

			got := r.Decide(context.Background(), tt.query, 10)
			if got.Route != tt.want {
				t.Errorf("Decide(%q).Route = %s, want %s", tt.query, got.Route, tt.want)
			}
			if got.Recency != tt.recency {
				t.Errorf("Decide(%q).Recency = %v, want %v", tt.query, got.Recency, tt.recency)
			}
			if !got.ByRule {
				t.Errorf("Decide(%q).ByRule = false, want true", tt.query)
			}
			if classifier.called {
				t.Errorf("classifier consulted for rule-resolved query %q", tt.query)
			}
		})
	}
}

func TestDecideOldYearIsNotRecent(t *testing.T) {
	r := NewRouter(WithClock(fixedClock))
	got := r.Decide(context.Background(), "Tell me about the textbook reform of 1998 in this chapter", 10)
	if got.Route != RoutePDFOnly {
		t.Errorf("Route = %s, want PDF_ONLY (1998 is not recent)", got.Route)
	}
}

func TestDecideAmbiguousUsesClassifier(t *testing.T) {
	classifier := &fixedClassifier{label: "BOTH"}
	r := NewRouter(WithClassifier(classifier), WithClock(fixedClock))

	got := r.Decide(context.Background(), "How do modern computers use rational numbers?", 10)
	if !classifier.called {
		t.Fatal("ambiguous query did not reach the classifier")
	}
	if got.Route != RouteBoth {
		t.Errorf("Route = %s, want BOTH", got.Route)
	}
	if got.ByRule {
		t.Error("ByRule = true for classifier decision")
	}
}

func TestDecideBothPatternsGoToClassifier(t *testing.T) {
	classifier := &fixedClassifier{label: "WEB_ONLY"}
	r := NewRouter(WithClassifier(classifier), WithClock(fixedClock))

	// Recency and textbook triggers both fire; rules cannot settle it.
	got := r.Decide(context.Background(), "What does chapter 2 say about recent climate data?", 10)
	if !classifier.called {
		t.Fatal("conflicting query did not reach the classifier")
	}
	if got.Route != RouteWebOnly {
		t.Errorf("Route = %s, want WEB_ONLY", got.Route)
	}
}

func TestDecideClassifierFallback(t *testing.T) {
	tests := []struct {
		name       string
		classifier *fixedClassifier
		indexSize  int
		want       Route
	}{
		{name: "error with populated index", classifier: &fixedClassifier{err: errors.New("rate limited")}, indexSize: 5, want: RoutePDFOnly},
		{name: "error with empty index", classifier: &fixedClassifier{err: errors.New("rate limited")}, indexSize: 0, want: RouteWebOnly},
		{name: "invalid label", classifier: &fixedClassifier{label: "MAYBE"}, indexSize: 5, want: RoutePDFOnly},
		{name: "no classifier populated index", classifier: nil, indexSize: 5, want: RoutePDFOnly},
		{name: "no classifier empty index", classifier: nil, indexSize: 0, want: RouteWebOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []RouterOption{WithClock(fixedClock)}
			if tt.classifier != nil {
				opts = append(opts, WithClassifier(tt.classifier))
			}
			r := NewRouter(opts...)
			got := r.Decide(context.Background(), "How do computers represent numbers internally?", tt.indexSize)
			if got.Route != tt.want {
				t.Errorf("Route = %s, want %s", got.Route, tt.want)
			}
		})
	}
}

func TestParseRoute(t *testing.T) {
	if route, ok := ParseRoute(" pdf_only \n"); !ok || route != RoutePDFOnly {
		t.Errorf("ParseRoute(pdf_only) = %s, %v", route, ok)
	}
	if _, ok := ParseRoute("SOMETIMES"); ok {
		t.Error("ParseRoute accepted an invalid label")
	}
}
