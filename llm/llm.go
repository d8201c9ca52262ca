package llm

import (
	"context"
	"iter"

	"github.com/sweetpotato0/ai-tutor/message"
)

// Request carries one generation call: an optional system prompt, the
// conversation so far, and sampling parameters.
type Request struct {
	System      string
	Messages    []*message.Message
	Temperature float64
	MaxTokens   int64
}

// Generator produces model output. GenerateStream yields text deltas in
// order; iteration stops on the first error or when the caller breaks out,
// which must cancel the underlying request promptly.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
	GenerateStream(ctx context.Context, req *Request) iter.Seq2[string, error]
}
