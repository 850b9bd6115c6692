package summarization

import "context"

// GenerateRequest is one completion call against a language model.
type GenerateRequest struct {
	System          string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Generator produces a text continuation for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Tokenizer converts text to model tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}
