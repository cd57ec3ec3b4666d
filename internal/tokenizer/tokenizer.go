package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// BPE ranks are embedded in the binary, loading an encoding never touches the network
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer converts text to token ids and back.
// It must share its vocabulary with the embedding model used for ranking.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Factory returns the tokenizer for one Split call
type Factory func() Tokenizer

// Shared returns a factory handing out the same read-only tokenizer every time
func Shared(tok Tokenizer) Factory {
	return func() Tokenizer { return tok }
}

// BPE is a tiktoken byte-pair encoder
type BPE struct {
	enc *tiktoken.Tiktoken
}

var (
	bpeMu    sync.Mutex
	bpeCache = make(map[string]*BPE)
)

// NewBPE returns the shared encoder for the named encoding, e.g. "cl100k_base".
// The BPE ranks are loaded once per process and reused read-only.
func NewBPE(encoding string) (*BPE, error) {
	bpeMu.Lock()
	defer bpeMu.Unlock()

	if b, ok := bpeCache[encoding]; ok {
		return b, nil
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}

	b := &BPE{enc: enc}
	bpeCache[encoding] = b
	return b, nil
}

func (b *BPE) Encode(text string) []int {
	return b.enc.Encode(text, nil, nil)
}

func (b *BPE) Decode(tokens []int) string {
	return b.enc.Decode(tokens)
}

// Words is a whitespace tokenizer paired with the hash embedder.
// Its vocabulary grows as words are seen, so a Words value serves a single
// text and is never shared; use WordsFactory to get a fresh one per call.
type Words struct {
	ids   map[string]int
	words []string
}

func NewWords() *Words {
	return &Words{ids: make(map[string]int)}
}

// WordsFactory hands out a new, empty Words for every call
func WordsFactory() Tokenizer {
	return NewWords()
}

func (w *Words) Encode(text string) []int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	tokens := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.words)
			w.ids[f] = id
			w.words = append(w.words, f)
		}
		tokens[i] = id
	}
	return tokens
}

func (w *Words) Decode(tokens []int) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t >= 0 && t < len(w.words) {
			parts = append(parts, w.words[t])
		}
	}
	return strings.Join(parts, " ")
}
