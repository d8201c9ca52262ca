package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/sweetpotato0/ai-tutor/rag/tokenizer"
)

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Tokenizer wraps a tiktoken encoding so chunk sizes match what the
// embedding model actually sees.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New resolves the encoding for a model name, falling back to treating the
// name as an encoding name (e.g. "cl100k_base").
func New(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

func (t *Tokenizer) DecodeIds(ids []int) string {
	return t.enc.Decode(ids)
}
