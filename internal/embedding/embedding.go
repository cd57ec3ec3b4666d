package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns texts into vectors, index-aligned with the input
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector
func Cosine(a, b []float64) float64 {
	n := min(len(a), len(b))

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Hash is a deterministic hashed bag-of-words embedder for offline use.
// Identical texts always map to identical vectors.
type Hash struct {
	dimension int
}

func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = 384
	}
	return &Hash{dimension: dimension}
}

func (h *Hash) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, h.dimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,;:!?\"'()[]{}")
			if word == "" {
				continue
			}
			hasher := fnv.New32a()
			_, _ = hasher.Write([]byte(word))
			vec[hasher.Sum32()%uint32(h.dimension)]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}
