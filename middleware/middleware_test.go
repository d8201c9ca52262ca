package middleware_test

import (
	"context"
	"iter"
	"testing"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/middleware"
)

type tagged struct {
	base llm.Generator
	tag  string
	log  *[]string
}

func (g *tagged) Generate(ctx context.Context, req *llm.Request) (string, error) {
	*g.log = append(*g.log, g.tag)
	return g.base.Generate(ctx, req)
}

func (g *tagged) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	*g.log = append(*g.log, g.tag)
	return g.base.GenerateStream(ctx, req)
}

type leaf struct{}

func (leaf) Generate(context.Context, *llm.Request) (string, error) { return "leaf", nil }

func (leaf) GenerateStream(context.Context, *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("leaf", nil)
	}
}

func wrapper(tag string, log *[]string) middleware.Wrapper {
	return func(base llm.Generator) llm.Generator {
		return &tagged{base: base, tag: tag, log: log}
	}
}

func TestChainOrder(t *testing.T) {
	var log []string
	g := middleware.Chain(leaf{}, wrapper("outer", &log), wrapper("inner", &log))

	out, err := g.Generate(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "leaf" {
		t.Errorf("output = %q, want leaf", out)
	}
	if len(log) != 2 || log[0] != "outer" || log[1] != "inner" {
		t.Errorf("call order = %v, want [outer inner]", log)
	}
}

func TestChainNoWrappers(t *testing.T) {
	g := middleware.Chain(leaf{})
	out, err := g.Generate(context.Background(), &llm.Request{})
	if err != nil || out != "leaf" {
		t.Fatalf("got %q, %v", out, err)
	}
}
