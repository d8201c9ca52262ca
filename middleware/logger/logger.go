// Package logger logs every model call: message count going in, output
// size and duration coming out.
package logger

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/middleware"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
)

type generator struct {
	base llm.Generator
	log  *slog.Logger
}

// Wrap returns a logging wrapper. A nil logger uses the process default.
func Wrap(log *slog.Logger) middleware.Wrapper {
	if log == nil {
		log = logging.WithComponent("llm")
	}
	return func(base llm.Generator) llm.Generator {
		return &generator{base: base, log: log}
	}
}

func (g *generator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	start := time.Now()
	out, err := g.base.Generate(ctx, req)
	if err != nil {
		g.log.Warn("model call failed", "messages", len(req.Messages), "duration", time.Since(start), "error", err)
		return out, err
	}
	g.log.Debug("model call", "messages", len(req.Messages), "output_chars", len(out), "duration", time.Since(start))
	return out, nil
}

func (g *generator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		var chars int
		var failed bool
		for delta, err := range g.base.GenerateStream(ctx, req) {
			if err != nil {
				failed = true
				g.log.Warn("model stream failed", "messages", len(req.Messages), "output_chars", chars, "duration", time.Since(start), "error", err)
			} else {
				chars += len(delta)
			}
			if !yield(delta, err) {
				return
			}
		}
		if !failed {
			g.log.Debug("model stream", "messages", len(req.Messages), "output_chars", chars, "duration", time.Since(start))
		}
	}
}
