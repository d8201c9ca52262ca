package logger_test

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"strings"
	"testing"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/middleware/logger"
)

type fixed struct{}

func (fixed) Generate(context.Context, *llm.Request) (string, error) { return "answer", nil }

func (fixed) GenerateStream(context.Context, *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("ans", nil) {
			return
		}
		yield("wer", nil)
	}
}

func TestLoggerRecordsCall(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := logger.Wrap(log)(fixed{})

	out, err := g.Generate(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "answer" {
		t.Errorf("output = %q, want answer", out)
	}
	if !strings.Contains(buf.String(), "model call") {
		t.Errorf("log output missing model call record: %s", buf.String())
	}
}

func TestLoggerRecordsStream(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := logger.Wrap(log)(fixed{})

	var out strings.Builder
	for delta, err := range g.GenerateStream(context.Background(), &llm.Request{}) {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		out.WriteString(delta)
	}
	if out.String() != "answer" {
		t.Errorf("streamed output = %q, want answer", out.String())
	}
	if !strings.Contains(buf.String(), "output_chars=6") {
		t.Errorf("log output missing stream size: %s", buf.String())
	}
}
