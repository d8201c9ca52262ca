// Package limiter caps how many model calls start within a sliding window,
// protecting the provider quota from runaway clients.
package limiter

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/middleware"
)

// ErrRateLimitExceeded indicates the call budget for the current window is
// spent.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter counts call starts in a sliding window.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

// New creates a limiter allowing max calls per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window, now: time.Now}
}

// Allow records a call start, or reports that the window is full.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	kept := l.starts[:0]
	for _, t := range l.starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.starts = kept

	if len(l.starts) >= l.max {
		return ErrRateLimitExceeded
	}
	l.starts = append(l.starts, l.now())
	return nil
}

type generator struct {
	base    llm.Generator
	limiter *Limiter
}

// Wrap returns a wrapper enforcing the limit on both call styles.
func Wrap(l *Limiter) middleware.Wrapper {
	return func(base llm.Generator) llm.Generator {
		return &generator{base: base, limiter: l}
	}
}

func (g *generator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if err := g.limiter.Allow(); err != nil {
		return "", err
	}
	return g.base.Generate(ctx, req)
}

func (g *generator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	if err := g.limiter.Allow(); err != nil {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	}
	return g.base.GenerateStream(ctx, req)
}
