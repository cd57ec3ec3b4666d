package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const maxBatch = 100

// OpenAI embeds through any OpenAI-compatible /embeddings endpoint
// (OpenAI, Ollama, Jina, vLLM).
type OpenAI struct {
	client    openai.Client
	model     string
	batchSize int
}

func NewOpenAI(apiKey, baseURL, model string, batchSize int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if batchSize <= 0 || batchSize > maxBatch {
		batchSize = maxBatch
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		batchSize: batchSize,
	}
}

func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float64, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vectors := make([][]float64, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && int(data.Index) < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}

	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding missing for input %d", i)
		}
	}

	return vectors, nil
}
