package chunking

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	chapterRe = regexp.MustCompile(`(?i)\bchapter\s+(\d+)`)
	sectionRe = regexp.MustCompile(`(?m)^\s*(\d+\.\d+)\s+(\S[^\n]{0,78})`)

	mathRes = []*regexp.Regexp{
		regexp.MustCompile(`\d+\s*/\s*\d+`),             // fractions
		regexp.MustCompile(`\b\w+\s*\^\s*\w+`),          // exponents
		regexp.MustCompile(`[=<>±×÷]|≤|≥`),              // operators
		regexp.MustCompile(`[√∞π∑∫Δθ]`),                 // math symbols
		regexp.MustCompile(`\\[a-zA-Z]+\{|\\frac|\\sqrt`), // LaTeX commands
		regexp.MustCompile(`[a-z]\s*[²³]`),              // unicode powers
	}

	// ordered so inference is deterministic when a name matches twice
	subjectKeywords = []struct{ keyword, subject string }{
		{"math", "mathematics"}, {"algebra", "mathematics"}, {"geometry", "mathematics"},
		{"calculus", "mathematics"}, {"arithmetic", "mathematics"},
		{"physics", "physics"}, {"mechanics", "physics"},
		{"chemistry", "chemistry"}, {"chem", "chemistry"},
		{"biology", "biology"}, {"bio", "biology"},
		{"history", "history"},
		{"geography", "geography"},
		{"economics", "economics"},
		{"english", "english"}, {"grammar", "english"},
		{"computer", "computer science"}, {"programming", "computer science"},
	}
)

// DetectChapter returns the chapter number mentioned in the text, or "".
func DetectChapter(text string) string {
	if m := chapterRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// DetectSection returns "n.m title" for a leading numbered section heading,
// or "".
func DetectSection(text string) string {
	if m := sectionRe.FindStringSubmatch(text); m != nil {
		return m[1] + " " + strings.TrimSpace(m[2])
	}
	return ""
}

// ClassifyContentType buckets a chunk by keyword presence. Exercises win
// over examples, examples over introductions; everything else is an
// explanation.
func ClassifyContentType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "exercise") ||
		strings.Contains(lower, "problem") ||
		strings.Contains(lower, "question"):
		return "problem"
	case strings.Contains(lower, "example") || strings.Contains(text, "Ex. "):
		return "example"
	case strings.Contains(lower, "introduction") || strings.Contains(lower, "chapter"):
		return "introduction"
	default:
		return "explanation"
	}
}

// HasMath reports whether the text contains mathematical notation.
func HasMath(text string) bool {
	for _, re := range mathRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// InferSubject guesses the subject from the source path, or returns "".
func InferSubject(source string) string {
	return InferSubjectFromText(filepath.Base(source))
}

// InferSubjectFromText guesses the subject from free-form text, such as a
// student's question, or returns "".
func InferSubjectFromText(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range subjectKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.subject
		}
	}
	return ""
}
