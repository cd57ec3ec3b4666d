package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// AgenticOptions bound the research loop. Zero limits mean unlimited.
type AgenticOptions struct {
	MaxURLs             int
	TopK                int
	MaxTurns            int
	MaxMalformedRetries int
}

// Agentic lets the model search repeatedly before answering
type Agentic struct {
	deps  Deps
	opts  AgenticOptions
	tools []models.FunctionDef
}

func NewAgentic(deps Deps, opts AgenticOptions) *Agentic {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = 8
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Agentic{
		deps:  deps,
		opts:  opts,
		tools: []models.FunctionDef{internetSearchTool},
	}
}

// Run returns the event stream for one research session. The conversation
// lives only for the duration of the iteration.
func (a *Agentic) Run(ctx context.Context, query string, creds models.Credentials) iter.Seq[models.Event] {
	return func(yield func(models.Event) bool) {
		log := logger.FromContext(ctx, logger.Named("agentic"))

		if !yield(models.LogEvent("Research Initiated...")) {
			return
		}

		messages := []models.Message{
			{Role: models.RoleSystem, Content: agenticSystemPrompt(a.deps.Context.Gather(ctx), query, a.tools)},
		}

		// Every other search is biased toward forum discussions, starting with the first
		social := true
		turns, malformed := 0, 0

		for {
			if a.opts.MaxTurns > 0 && turns >= a.opts.MaxTurns {
				err := fmt.Errorf("%w: no final answer after %d model turns", ErrAborted, turns)
				log.Warn("agentic run aborted", zap.Error(err))
				yield(models.ErrorEvent(err))
				return
			}
			turns++

			completion, err := a.deps.Completer.Complete(ctx, creds, messages, a.deps.Temperature)
			if err != nil {
				log.Error("completion failed", zap.Int("turn", turns), zap.Error(err))
				yield(models.ErrorEvent(err))
				return
			}

			if completion.Usage != nil {
				if !yield(models.UsageEvent(*completion.Usage)) {
					return
				}
			}

			call, err := ParseToolCall(completion.Content)
			if errors.Is(err, ErrMalformedToolCall) {
				malformed++
				log.Warn("discarding malformed tool call", zap.Int("turn", turns), zap.Int("consecutive", malformed))
				if a.opts.MaxMalformedRetries > 0 && malformed > a.opts.MaxMalformedRetries {
					err := fmt.Errorf("%w: %d consecutive malformed tool calls", ErrAborted, malformed)
					yield(models.ErrorEvent(err))
					return
				}
				continue
			}
			malformed = 0

			if call != nil && call.Tool == ToolInternetSearch {
				results, err := a.search(ctx, call, social, yield)
				if err != nil {
					if !errors.Is(err, errStopped) {
						log.Error("retrieval failed", zap.Error(err))
						yield(models.ErrorEvent(err))
					}
					return
				}

				messages = append(messages,
					models.Message{Role: models.RoleAssistant, Content: call.Raw},
					models.Message{Role: models.RoleUser, Content: "Tool " + call.Tool + " returned:\n" + results},
				)
				social = !social
				continue
			}

			// No tool call, this is the final answer
			messages = append(messages, models.Message{Role: models.RoleAssistant, Content: completion.Content})
			log.Info("agentic search completed", zap.Int("turns", turns), zap.Int("messages", len(messages)))
			yield(models.OutputEvent(a.deps.render(completion.Content)))
			return
		}
	}
}

// errStopped signals that the consumer stopped iterating
var errStopped = errors.New("stopped")

// search runs one internet_search call and renders its results for the model
func (a *Agentic) search(ctx context.Context, call *models.ToolCall, social bool, yield func(models.Event) bool) (string, error) {
	query := call.Parameters["query"]
	explanation, ok := call.Parameters["explanation"]
	if !ok {
		explanation = "Searching for: " + query
	}

	if !yield(models.SearchLogEvent(explanation, query)) {
		return "", errStopped
	}

	searchQuery := query
	if social {
		searchQuery = query + " reddit"
	}

	res, err := a.deps.Retriever.Retrieve(ctx, retrieval.Request{
		Query:       query,
		SearchQuery: searchQuery,
		MaxURLs:     a.opts.MaxURLs,
		TopK:        a.opts.TopK,
	})
	if err != nil {
		return "", err
	}

	if res.Empty() {
		if res.Reason == retrieval.ReasonNoURLs {
			return "No search results found.", nil
		}
		return "No content could be extracted from search results.", nil
	}
	return `Results for "` + query + `":` + "\n\n" + retrieval.FormatChunks(res.Chunks), nil
}
