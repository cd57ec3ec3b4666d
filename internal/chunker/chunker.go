package chunker

import (
	"strings"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/tokenizer"
)

const (
	DefaultWindow = 256
	DefaultStride = 192
)

// Chunker slides a fixed token window over page text
type Chunker struct {
	newTok tokenizer.Factory
	window int
	stride int
}

// New creates a chunker. Non-positive window or stride fall back to the defaults,
// and a stride larger than the window is clamped so no tokens are skipped.
// newTok is called once per Split, so tokenizers with per-text state never
// leak between requests.
func New(newTok tokenizer.Factory, window, stride int) *Chunker {
	if window <= 0 {
		window = DefaultWindow
	}
	if stride <= 0 {
		stride = DefaultStride
	}
	if stride > window {
		stride = window
	}
	return &Chunker{newTok: newTok, window: window, stride: stride}
}

// Split returns the overlapping chunks of text, each tagged with sourceURL.
// The last window ends at the final token; no window past it is emitted.
func (c *Chunker) Split(text, sourceURL string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tok := c.newTok()
	tokens := tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []models.Chunk
	for start := 0; ; start += c.stride {
		end := min(start+c.window, len(tokens))
		chunks = append(chunks, models.Chunk{
			Text:      c.body(tok, tokens[start:end]) + "\nSource: " + sourceURL,
			SourceURL: sourceURL,
		})
		if end == len(tokens) {
			break
		}
	}

	return chunks
}

// body decodes one window. Bytes of a character cut at either edge are dropped,
// and the tail is shortened until the text re-encodes within the window.
func (c *Chunker) body(tok tokenizer.Tokenizer, window []int) string {
	for n := len(window); n > 0; n-- {
		text := strings.ToValidUTF8(tok.Decode(window[:n]), "")
		if len(tok.Encode(text)) <= c.window {
			return text
		}
	}
	return ""
}
