package ranker

import (
	"context"
	"fmt"
	"sort"

	"github.com/parth0cb/agentic-internet-researcher/internal/embedding"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

// Ranker selects the chunks most similar to a query.
// Query and chunks go through the same embedder.
type Ranker struct {
	embedder embedding.Embedder
}

func New(embedder embedding.Embedder) *Ranker {
	return &Ranker{embedder: embedder}
}

// Rank returns at most topK chunks in descending similarity to query.
// Equal scores keep their input order.
func (r *Ranker) Rank(ctx context.Context, query string, chunks []models.Chunk, topK int) ([]models.Chunk, error) {
	if len(chunks) == 0 || topK <= 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(queryVec) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(queryVec))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	chunkVecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(chunkVecs) != len(chunks) {
		return nil, fmt.Errorf("expected %d chunk embeddings, got %d", len(chunks), len(chunkVecs))
	}

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(chunks))
	for i, v := range chunkVecs {
		scores[i] = scored{index: i, score: embedding.Cosine(queryVec[0], v)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	n := min(topK, len(scores))
	ranked := make([]models.Chunk, n)
	for i := 0; i < n; i++ {
		ranked[i] = chunks[scores[i].index]
	}

	return ranked, nil
}
