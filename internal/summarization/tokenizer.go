package summarization

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var loaderOnce sync.Once

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a BPE tokenizer for encoding (e.g. cl100k_base). The
// vocabulary is embedded, so no network access is needed.
func NewTiktoken(encoding string) (Tokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", encoding, err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the raw bytes of tokens. A slice that ends inside a
// multi-byte rune yields invalid UTF-8; Chunk never cuts there.
func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Chunk splits text into windows of about size tokens. Window edges move to
// the nearest rune boundary, so the chunks concatenate back to text.
func Chunk(tok Tokenizer, text string, size int) []string {
	tokens := tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(tokens)
	}

	chunks := make([]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); {
		end := min(start+size, len(tokens))
		chunk := tok.Decode(tokens[start:end])

		// Pull the edge back to a rune boundary; the cut bytes open the next window.
		for end > start+1 && !utf8.ValidString(chunk) {
			end--
			chunk = tok.Decode(tokens[start:end])
		}
		// A single rune wider than the window: grow until it is whole.
		for end < len(tokens) && !utf8.ValidString(chunk) {
			end++
			chunk = tok.Decode(tokens[start:end])
		}

		chunks = append(chunks, chunk)
		start = end
	}
	return chunks
}
