package chunking

import (
	"testing"
)

func TestDetectChapter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"uppercase", "CHAPTER 4 Linear Equations", "4"},
		{"mixed case", "Welcome to Chapter 12 of this book", "12"},
		{"absent", "no structural markers here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectChapter(tt.text); got != tt.want {
				t.Errorf("DetectChapter(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectSection(t *testing.T) {
	got := DetectSection("3.2 Properties of Rational Numbers\nBody follows.")
	if got != "3.2 Properties of Rational Numbers" {
		t.Errorf("DetectSection = %q", got)
	}

	if got := DetectSection("plain paragraph text"); got != "" {
		t.Errorf("DetectSection on plain text = %q, want empty", got)
	}
}

func TestClassifyContentType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"exercise", "Exercise 3.1: solve the following", "problem"},
		{"question", "Answer the question below", "problem"},
		{"example", "Example: consider the fraction 1/2", "example"},
		{"ex abbreviation", "See Ex. 4 for details", "example"},
		{"introduction", "Introduction to rational numbers", "introduction"},
		{"chapter opener", "This chapter covers fractions", "introduction"},
		{"default", "Water boils at a fixed temperature under constant pressure", "explanation"},
		{"problem wins over example", "Problem 2: unlike the example above, compute", "problem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyContentType(tt.text); got != tt.want {
				t.Errorf("ClassifyContentType(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestHasMath(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"fraction", "three quarters is 3/4", true},
		{"exponent", "compute x^2 for x=3", true},
		{"operator", "a = b", true},
		{"symbols", "the constant π is irrational", true},
		{"latex", `use \frac{1}{2} here`, true},
		{"prose", "the quick brown fox jumps over it", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMath(tt.text); got != tt.want {
				t.Errorf("HasMath(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestInferSubject(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"math file", "data/class8_mathematics.pdf", "mathematics"},
		{"physics file", "physics_volume1.pdf", "physics"},
		{"unknown", "data/notes.pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferSubject(tt.source); got != tt.want {
				t.Errorf("InferSubject(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}
