// Package middleware provides cross-cutting decorators for llm.Generator.
// Wrappers compose around the provider client so every model call, blocking
// or streaming, passes through the same logging and rate-limiting layers.
package middleware

import "github.com/sweetpotato0/ai-tutor/llm"

// Wrapper decorates a Generator with one cross-cutting concern.
type Wrapper func(llm.Generator) llm.Generator

// Chain applies wrappers so the first one listed is outermost.
func Chain(base llm.Generator, wrappers ...Wrapper) llm.Generator {
	g := base
	for i := len(wrappers) - 1; i >= 0; i-- {
		g = wrappers[i](g)
	}
	return g
}
