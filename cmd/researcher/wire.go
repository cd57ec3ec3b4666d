package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/chunker"
	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/contextinfo"
	"github.com/parth0cb/agentic-internet-researcher/internal/embedding"
	"github.com/parth0cb/agentic-internet-researcher/internal/fetch"
	"github.com/parth0cb/agentic-internet-researcher/internal/llm"
	"github.com/parth0cb/agentic-internet-researcher/internal/orchestrator"
	"github.com/parth0cb/agentic-internet-researcher/internal/ranker"
	"github.com/parth0cb/agentic-internet-researcher/internal/render"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
	"github.com/parth0cb/agentic-internet-researcher/internal/search"
	"github.com/parth0cb/agentic-internet-researcher/internal/tokenizer"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// app holds the wired research components
type app struct {
	search  *search.Manager
	simple  *orchestrator.Simple
	agentic *orchestrator.Agentic
}

func (a *app) Close() {
	a.search.Close()
}

func newApp(cfg *config.Config) *app {
	manager := search.NewManager(&cfg.Search)
	if !manager.HasAvailableProvider() {
		logger.Warn("no search provider is available, every search will come back empty")
	}

	tok, embedder := newEmbedding(&cfg.Embedding, cfg.LLM.APIKey)

	pipeline := retrieval.New(
		manager,
		fetch.NewHTTP(seconds(cfg.Fetch.Timeout), cfg.Fetch.UserAgent, cfg.Fetch.MaxBytes),
		fetch.NewExtractor(),
		chunker.New(tok, cfg.Retrieval.Window, cfg.Retrieval.Stride),
		ranker.New(embedder),
		retrieval.WithMaxResults(cfg.Search.MaxResults),
		retrieval.WithExcludePatterns(cfg.Retrieval.ExcludePatterns),
	)

	deps := orchestrator.Deps{
		Retriever:   pipeline,
		Completer:   llm.NewOpenAI(seconds(cfg.LLM.Timeout)),
		Context:     contextinfo.New(cfg.Context.Geolocation, cfg.Context.GeolocationURL, seconds(cfg.Context.Timeout)),
		Renderer:    render.New(),
		Temperature: cfg.LLM.Temperature,
	}

	return &app{
		search: manager,
		simple: orchestrator.NewSimple(deps, cfg.Simple.MaxURLs, cfg.Simple.TopK),
		agentic: orchestrator.NewAgentic(deps, orchestrator.AgenticOptions{
			MaxURLs:             cfg.Agentic.MaxURLs,
			TopK:                cfg.Agentic.TopK,
			MaxTurns:            cfg.Agentic.MaxTurns,
			MaxMalformedRetries: cfg.Agentic.MaxMalformedRetries,
		}),
	}
}

// newEmbedding pairs the embedder with the tokenizer its chunk budget is counted in
func newEmbedding(cfg *config.EmbeddingConfig, fallbackKey string) (tokenizer.Factory, embedding.Embedder) {
	if cfg.Provider == "openai" {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = fallbackKey
		}
		if apiKey != "" {
			tok, err := tokenizer.NewBPE(cfg.Encoding)
			if err == nil {
				logger.Info("embedding initialized",
					zap.String("provider", cfg.Provider),
					zap.String("model", cfg.Model),
					zap.String("encoding", cfg.Encoding),
				)
				return tokenizer.Shared(tok), embedding.NewOpenAI(apiKey, cfg.BaseURL, cfg.Model, cfg.BatchSize)
			}
			logger.Warn("failed to load tokenizer, falling back to hash embedding",
				zap.String("encoding", cfg.Encoding),
				zap.Error(err),
			)
		} else {
			logger.Warn("no embedding API key configured, falling back to hash embedding")
		}
	}

	logger.Info("embedding initialized",
		zap.String("provider", "hash"),
		zap.Int("dimension", cfg.Dimension),
	)
	return tokenizer.WordsFactory, embedding.NewHash(cfg.Dimension)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
