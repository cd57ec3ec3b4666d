package orchestrator

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// Diagnostics emitted when simple mode retrieves nothing
const (
	msgNoURLs    = "Error searching. Try turning off VPN."
	msgNoContent = "No content could be extracted from search results."
)

// Simple answers with one retrieval pass and one completion
type Simple struct {
	deps    Deps
	maxURLs int
	topK    int
}

func NewSimple(deps Deps, maxURLs, topK int) *Simple {
	if maxURLs <= 0 {
		maxURLs = 15
	}
	if topK <= 0 {
		topK = 5
	}
	return &Simple{deps: deps, maxURLs: maxURLs, topK: topK}
}

// Run returns the event stream for one query. The sequence is lazy and runs
// the pipeline as it is consumed; stopping iteration stops the run.
func (s *Simple) Run(ctx context.Context, query string, creds models.Credentials) iter.Seq[models.Event] {
	return func(yield func(models.Event) bool) {
		log := logger.FromContext(ctx, logger.Named("simple"))

		if !yield(models.LogEvent(`Searching for "` + query + `"...`)) {
			return
		}

		res, err := s.deps.Retriever.Retrieve(ctx, retrieval.Request{
			Query:   query,
			MaxURLs: s.maxURLs,
			TopK:    s.topK,
		})
		if err != nil {
			log.Error("retrieval failed", zap.Error(err))
			yield(models.ErrorEvent(err))
			return
		}

		// An empty result is reported but the model is still asked. No URLs
		// means no content either, so that case reports both, in order.
		if res.Empty() {
			if res.Reason == retrieval.ReasonNoURLs && !yield(models.OutputEvent(msgNoURLs)) {
				return
			}
			if !yield(models.OutputEvent(msgNoContent)) {
				return
			}
		}

		messages := []models.Message{
			{Role: models.RoleSystem, Content: simpleSystemPrompt(s.deps.Context.Gather(ctx))},
			{Role: models.RoleUser, Content: simpleUserPrompt(retrieval.FormatChunks(res.Chunks), query)},
		}

		if !yield(models.LogEvent("Generating output...")) {
			return
		}

		completion, err := s.deps.Completer.Complete(ctx, creds, messages, s.deps.Temperature)
		if err != nil {
			log.Error("completion failed", zap.Error(err))
			yield(models.ErrorEvent(err))
			return
		}

		if completion.Usage != nil {
			if !yield(models.UsageEvent(*completion.Usage)) {
				return
			}
		}

		log.Info("simple search completed",
			zap.Int("chunks", len(res.Chunks)),
			zap.Int("answer_len", len(completion.Content)),
		)
		yield(models.OutputEvent(s.deps.render(completion.Content)))
	}
}
