package tokenizer

import (
	"testing"
)

func TestSimpleTokenizerCountTokens(t *testing.T) {
	tk := NewSimpleTokenizer()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"words", "force equals mass times acceleration", 5},
		{"punctuation", "F = m * a.", 5},
		{"mixed whitespace", "one\ttwo\n three", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tk.CountTokens(tt.text); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestSimpleTokenizerEncodeStable(t *testing.T) {
	tk := NewSimpleTokenizer()

	first := tk.Encode("energy is conserved")
	second := tk.Encode("energy is conserved")

	if len(first) != len(second) {
		t.Fatalf("expected stable encoding lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("token %d: id changed between encodings (%d vs %d)", i, first[i], second[i])
		}
	}
}

func TestSimpleTokenizerDecode(t *testing.T) {
	tk := NewSimpleTokenizer()
	ids := tk.Encode("kinetic energy")
	if got := tk.DecodeIds(ids); got != "kinetic energy" {
		t.Errorf("DecodeIds = %q, want %q", got, "kinetic energy")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("EstimateTokens(8 chars) = %d, want 2", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(empty) = %d, want 0", got)
	}
}
