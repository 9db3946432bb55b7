package enrich

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rotisserie/eris"
)

// Tokenizer measures and truncates text in model tokens.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// tiktokenTokenizer wraps a tiktoken encoding.
type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a cl100k_base tokenizer.
func NewTiktoken() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, eris.Wrap(err, "enrich: loading tokenizer")
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}
