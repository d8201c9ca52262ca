package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenizer counts and slices text in token units. Chunk sizes and overlaps
// are expressed in tokens, so the chunker needs a tokenizer to measure text.
type Tokenizer interface {
	Encode(text string) []int
	CountTokens(text string) int
	DecodeIds(ids []int) string
}

var _ Tokenizer = (*SimpleTokenizer)(nil)

// SimpleTokenizer is a dependency-free word-level tokenizer. It is good
// enough for tests and for rough sizing; production chunking should use the
// tiktoken-backed implementation so counts match the embedding model.
type SimpleTokenizer struct {
	vocab    map[string]int
	invVocab map[int]string
	nextID   int
}

func NewSimpleTokenizer() *SimpleTokenizer {
	return &SimpleTokenizer{
		vocab:    make(map[string]int),
		invVocab: make(map[int]string),
		nextID:   1,
	}
}

func (t *SimpleTokenizer) addToken(tok string) int {
	if id, ok := t.vocab[tok]; ok {
		return id
	}
	id := t.nextID
	t.vocab[tok] = id
	t.invVocab[id] = tok
	t.nextID++
	return id
}

// splitTokens breaks text into word, number, and punctuation tokens. CJK
// characters count one token each.
func (t *SimpleTokenizer) splitTokens(s string) []string {
	var toks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			toks = append(toks, buf.String())
			buf.Reset()
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()

		case unicode.Is(unicode.Han, r):
			flush()
			toks = append(toks, string(r))

		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf.WriteRune(r)

		default:
			flush()
			toks = append(toks, string(r))
		}
	}

	flush()
	return toks
}

func (t *SimpleTokenizer) Encode(text string) []int {
	toks := t.splitTokens(text)
	ids := make([]int, 0, len(toks))
	for _, tok := range toks {
		ids = append(ids, t.addToken(tok))
	}
	return ids
}

func (t *SimpleTokenizer) CountTokens(text string) int {
	return len(t.splitTokens(text))
}

func (t *SimpleTokenizer) DecodeIds(ids []int) string {
	var sb strings.Builder
	for i, id := range ids {
		if tok, ok := t.invVocab[id]; ok {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(tok)
		}
	}
	return sb.String()
}

// EstimateTokens is a cheap approximation (about four characters per token
// for English text) for callers that only need a rough budget check.
func EstimateTokens(text string) int {
	return len(text) / 4
}
