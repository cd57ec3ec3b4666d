package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/parth0cb/agentic-internet-researcher/internal/chunker"
	"github.com/parth0cb/agentic-internet-researcher/internal/embedding"
	"github.com/parth0cb/agentic-internet-researcher/internal/fetch"
	"github.com/parth0cb/agentic-internet-researcher/internal/llm"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/ranker"
	"github.com/parth0cb/agentic-internet-researcher/internal/render"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
	"github.com/parth0cb/agentic-internet-researcher/internal/tokenizer"
)

// scriptedCompleter replays canned replies and records every conversation it sees
type scriptedCompleter struct {
	replies []string
	usage   *models.Usage
	err     error
	seen    [][]models.Message
}

func (c *scriptedCompleter) Complete(_ context.Context, _ models.Credentials, messages []models.Message, _ float64) (*llm.Completion, error) {
	c.seen = append(c.seen, append([]models.Message(nil), messages...))
	if c.err != nil {
		return nil, c.err
	}
	if len(c.seen) > len(c.replies) {
		return nil, fmt.Errorf("%w: script exhausted", llm.ErrCompletion)
	}
	return &llm.Completion{Content: c.replies[len(c.seen)-1], Usage: c.usage}, nil
}

type fakeRetriever struct {
	result   *retrieval.Result
	err      error
	requests []retrieval.Request
}

func (r *fakeRetriever) Retrieve(_ context.Context, req retrieval.Request) (*retrieval.Result, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type staticContext string

func (s staticContext) Gather(context.Context) string { return string(s) }

var creds = models.Credentials{APIKey: "k", BaseURL: "http://llm", Model: "m"}

func deps(r Retriever, c llm.Completer) Deps {
	return Deps{
		Retriever:   r,
		Completer:   c,
		Context:     staticContext("Contextual Information:\n---\n\n"),
		Renderer:    render.New(),
		Temperature: 0.5,
	}
}

func collect(events func(func(models.Event) bool)) []models.Event {
	var out []models.Event
	events(func(ev models.Event) bool {
		out = append(out, ev)
		return true
	})
	return out
}

func types(events []models.Event) string {
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = ev.Type
	}
	return strings.Join(parts, ",")
}

func chunkResult(texts ...string) *retrieval.Result {
	res := &retrieval.Result{}
	for _, t := range texts {
		res.Chunks = append(res.Chunks, models.Chunk{Text: t})
	}
	return res
}

func searchCall(query string) string {
	return fmt.Sprintf(`'''tool_json
{"tool": "internet_search", "parameters": {"query": "%s", "explanation": "Looking up %s..."}}
'''`, query, query)
}

// ==================== Simple ====================

func TestSimple_EventOrder(t *testing.T) {
	r := &fakeRetriever{result: chunkResult("Paris is the capital of France.\nSource: https://en.wikipedia.org/wiki/Paris")}
	c := &scriptedCompleter{
		replies: []string{"Paris is the capital ([en.wikipedia.org](https://en.wikipedia.org/wiki/Paris))."},
		usage:   &models.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}

	events := collect(NewSimple(deps(r, c), 0, 0).Run(context.Background(), "capital of France", creds))

	if got := types(events); got != "log,log,token_usage,output" {
		t.Fatalf("Unexpected event sequence: %s", got)
	}
	if events[0].Content != `Searching for "capital of France"...` {
		t.Errorf("Unexpected first log: %v", events[0].Content)
	}
	if events[1].Content != "Generating output..." {
		t.Errorf("Unexpected second log: %v", events[1].Content)
	}
	if u := events[2].Content.(models.Usage); u.TotalTokens != 120 {
		t.Errorf("Unexpected usage: %+v", u)
	}
	if out := events[3].Content.(string); !strings.Contains(out, `href="https://en.wikipedia.org/wiki/Paris"`) {
		t.Errorf("Expected rendered link, got %q", out)
	}

	if r.requests[0].MaxURLs != 15 || r.requests[0].TopK != 5 {
		t.Errorf("Unexpected retrieval request: %+v", r.requests[0])
	}

	msgs := c.seen[0]
	if len(msgs) != 2 || msgs[0].Role != models.RoleSystem || msgs[1].Role != models.RoleUser {
		t.Fatalf("Unexpected messages: %+v", msgs)
	}
	if !strings.HasPrefix(msgs[0].Content, "Contextual Information:") || !strings.HasSuffix(msgs[0].Content, "Make your Answer detailed.") {
		t.Errorf("Unexpected system prompt: %q", msgs[0].Content)
	}
	wantUser := "Search Results:\n--- Top Chunk #1 ---\nParis is the capital of France.\nSource: https://en.wikipedia.org/wiki/Paris\n\n\n\n---\n\nQuestion:\ncapital of France \n\n---\n\nAnswer:"
	if msgs[1].Content != wantUser {
		t.Errorf("Unexpected user prompt:\n%q\nwant\n%q", msgs[1].Content, wantUser)
	}
}

func TestSimple_EmptyResultContinues(t *testing.T) {
	tests := []struct {
		reason string
		seq    string
		msgs   []string
	}{
		{retrieval.ReasonNoURLs, "log,output,output,log,output", []string{msgNoURLs, msgNoContent}},
		{retrieval.ReasonNoContent, "log,output,log,output", []string{msgNoContent}},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			r := &fakeRetriever{result: &retrieval.Result{Reason: tt.reason}}
			c := &scriptedCompleter{replies: []string{"I could not find anything."}}

			events := collect(NewSimple(deps(r, c), 0, 0).Run(context.Background(), "q", creds))

			if got := types(events); got != tt.seq {
				t.Fatalf("Unexpected event sequence: %s", got)
			}
			for i, msg := range tt.msgs {
				if events[1+i].Content != msg {
					t.Errorf("Expected diagnostic %q, got %v", msg, events[1+i].Content)
				}
			}
			if len(c.seen) != 1 {
				t.Errorf("Expected the model to be called once, got %d", len(c.seen))
			}
		})
	}
}

func TestSimple_CompletionError(t *testing.T) {
	r := &fakeRetriever{result: chunkResult("x")}
	c := &scriptedCompleter{err: fmt.Errorf("%w: 401 invalid api key", llm.ErrCompletion)}

	events := collect(NewSimple(deps(r, c), 0, 0).Run(context.Background(), "q", creds))

	if got := types(events); got != "log,log,error" {
		t.Fatalf("Unexpected event sequence: %s", got)
	}
	if !errors.Is(events[2].Err, llm.ErrCompletion) {
		t.Errorf("Expected ErrCompletion, got %v", events[2].Err)
	}
}

func TestSimple_StopsWhenConsumerStops(t *testing.T) {
	r := &fakeRetriever{result: chunkResult("x")}
	c := &scriptedCompleter{replies: []string{"answer"}}

	var n int
	NewSimple(deps(r, c), 0, 0).Run(context.Background(), "q", creds)(func(models.Event) bool {
		n++
		return false
	})

	if n != 1 || len(r.requests) != 0 || len(c.seen) != 0 {
		t.Errorf("Expected run to stop after first event, got events=%d retrievals=%d completions=%d", n, len(r.requests), len(c.seen))
	}
}

// ==================== Agentic ====================

func TestAgentic_SingleTurn(t *testing.T) {
	r := &fakeRetriever{}
	c := &scriptedCompleter{replies: []string{"Plain **answer**."}, usage: &models.Usage{TotalTokens: 7}}

	events := collect(NewAgentic(deps(r, c), AgenticOptions{}).Run(context.Background(), "q", creds))

	if got := types(events); got != "log,token_usage,output" {
		t.Fatalf("Unexpected event sequence: %s", got)
	}
	if events[0].Content != "Research Initiated..." {
		t.Errorf("Unexpected first log: %v", events[0].Content)
	}
	if out := events[2].Content.(string); !strings.Contains(out, "<strong>answer</strong>") {
		t.Errorf("Expected rendered markdown, got %q", out)
	}
	if len(r.requests) != 0 {
		t.Errorf("Expected no retrieval, got %d", len(r.requests))
	}

	system := c.seen[0][0]
	if system.Role != models.RoleSystem || !strings.Contains(system.Content, "internet_search: Call this tool") || !strings.HasSuffix(system.Content, "User query: q\n") {
		t.Errorf("Unexpected system prompt: %q", system.Content)
	}
}

func TestAgentic_RedditAlternation(t *testing.T) {
	r := &fakeRetriever{result: chunkResult("chunk one\nSource: https://a")}
	c := &scriptedCompleter{replies: []string{
		searchCall("first"),
		searchCall("second"),
		searchCall("third"),
		"Final answer.",
	}}

	events := collect(NewAgentic(deps(r, c), AgenticOptions{}).Run(context.Background(), "q", creds))

	if len(r.requests) != 3 {
		t.Fatalf("Expected 3 retrievals, got %d", len(r.requests))
	}
	wantSearch := []string{"first reddit", "second", "third reddit"}
	wantQuery := []string{"first", "second", "third"}
	for i := range wantSearch {
		if r.requests[i].SearchQuery != wantSearch[i] {
			t.Errorf("Search %d: expected %q, got %q", i, wantSearch[i], r.requests[i].SearchQuery)
		}
		if r.requests[i].Query != wantQuery[i] {
			t.Errorf("Search %d: expected ranking query %q, got %q", i, wantQuery[i], r.requests[i].Query)
		}
		if r.requests[i].MaxURLs != 8 || r.requests[i].TopK != 5 {
			t.Errorf("Search %d: unexpected limits %+v", i, r.requests[i])
		}
	}

	if got := types(events); got != "log,log,log,log,output" {
		t.Errorf("Unexpected event sequence: %s", got)
	}
	if sl, ok := events[1].Content.(models.SearchLog); !ok || sl.Query != "first" || sl.Explanation != "Looking up first..." {
		t.Errorf("Unexpected search log: %+v", events[1].Content)
	}

	// system + (assistant, user) per search
	last := c.seen[3]
	if len(last) != 7 {
		t.Fatalf("Expected 7 messages before final turn, got %d", len(last))
	}
	if last[1].Content != `{"tool": "internet_search", "parameters": {"query": "first", "explanation": "Looking up first..."}}` {
		t.Errorf("Unexpected assistant tool call: %q", last[1].Content)
	}
	wantResult := "Tool internet_search returned:\nResults for \"first\":\n\n--- Top Chunk #1 ---\nchunk one\nSource: https://a\n\n"
	if last[2].Role != models.RoleUser || last[2].Content != wantResult {
		t.Errorf("Unexpected tool result message: %q", last[2].Content)
	}
}

func TestAgentic_EmptyResultsAndDefaultExplanation(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Reason: retrieval.ReasonNoURLs}}
	c := &scriptedCompleter{replies: []string{
		`{"tool": "internet_search", "parameters": {"query": "obscure"}}`,
		"Nothing found.",
	}}

	events := collect(NewAgentic(deps(r, c), AgenticOptions{}).Run(context.Background(), "q", creds))

	if sl := events[1].Content.(models.SearchLog); sl.Explanation != "Searching for: obscure" {
		t.Errorf("Expected default explanation, got %q", sl.Explanation)
	}
	if got := c.seen[1][2].Content; got != "Tool internet_search returned:\nNo search results found." {
		t.Errorf("Unexpected tool result: %q", got)
	}
}

func TestAgentic_MalformedRetries(t *testing.T) {
	malformed := `{"tool": "internet_search", "parameters": {"query": oops}}`

	t.Run("recovers", func(t *testing.T) {
		r := &fakeRetriever{}
		c := &scriptedCompleter{replies: []string{malformed, "Answer."}}

		events := collect(NewAgentic(deps(r, c), AgenticOptions{MaxMalformedRetries: 3}).Run(context.Background(), "q", creds))

		if got := types(events); got != "log,output" {
			t.Errorf("Unexpected event sequence: %s", got)
		}
		if len(c.seen[1]) != 1 {
			t.Errorf("Expected malformed turn to append nothing, got %d messages", len(c.seen[1]))
		}
	})

	t.Run("aborts", func(t *testing.T) {
		r := &fakeRetriever{}
		c := &scriptedCompleter{replies: []string{malformed, malformed, malformed}}

		events := collect(NewAgentic(deps(r, c), AgenticOptions{MaxMalformedRetries: 2}).Run(context.Background(), "q", creds))

		if got := types(events); got != "log,error" {
			t.Fatalf("Unexpected event sequence: %s", got)
		}
		if !errors.Is(events[1].Err, ErrAborted) {
			t.Errorf("Expected ErrAborted, got %v", events[1].Err)
		}
		if len(c.seen) != 3 {
			t.Errorf("Expected 3 completions, got %d", len(c.seen))
		}
	})
}

func TestAgentic_MaxTurns(t *testing.T) {
	r := &fakeRetriever{result: chunkResult("x")}
	c := &scriptedCompleter{replies: []string{searchCall("a"), searchCall("b"), searchCall("c")}}

	events := collect(NewAgentic(deps(r, c), AgenticOptions{MaxTurns: 2}).Run(context.Background(), "q", creds))

	last := events[len(events)-1]
	if last.Type != models.EventError || !errors.Is(last.Err, ErrAborted) {
		t.Fatalf("Expected aborted error event, got %+v", last)
	}
	if len(c.seen) != 2 {
		t.Errorf("Expected 2 completions, got %d", len(c.seen))
	}
}

func TestAgentic_UnknownToolIsFinal(t *testing.T) {
	r := &fakeRetriever{}
	reply := `Here you go {"tool": "calculator", "parameters": {"expr": "1+1"}}`
	c := &scriptedCompleter{replies: []string{reply}}

	events := collect(NewAgentic(deps(r, c), AgenticOptions{}).Run(context.Background(), "q", creds))

	if got := types(events); got != "log,output" {
		t.Errorf("Unexpected event sequence: %s", got)
	}
	if len(r.requests) != 0 {
		t.Error("Expected no retrieval for unknown tool")
	}
}

func TestAgentic_Errors(t *testing.T) {
	t.Run("completion", func(t *testing.T) {
		c := &scriptedCompleter{err: fmt.Errorf("%w: quota", llm.ErrCompletion)}
		events := collect(NewAgentic(deps(&fakeRetriever{}, c), AgenticOptions{}).Run(context.Background(), "q", creds))

		if got := types(events); got != "log,error" {
			t.Errorf("Unexpected event sequence: %s", got)
		}
	})

	t.Run("retrieval", func(t *testing.T) {
		r := &fakeRetriever{err: errors.New("embedding backend down")}
		c := &scriptedCompleter{replies: []string{searchCall("x")}}
		events := collect(NewAgentic(deps(r, c), AgenticOptions{}).Run(context.Background(), "q", creds))

		if got := types(events); got != "log,log,error" {
			t.Errorf("Unexpected event sequence: %s", got)
		}
	})
}

// ==================== Tool call parsing ====================

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		tool    string
		query   string
		wantErr bool
	}{
		{"bare", `{"tool": "internet_search", "parameters": {"query": "go"}}`, "internet_search", "go", false},
		{"in prose", "Let me check.\n'''tool_json\n{\"tool\": \"internet_search\", \"parameters\": {\"query\": \"go\", \"explanation\": \"Checking...\"}}\n'''", "internet_search", "go", false},
		{"multiline", "{\n  \"tool\": \"internet_search\",\n  \"parameters\": {\n    \"query\": \"go\"\n  }\n}", "internet_search", "go", false},
		{"number param", `{"tool": "internet_search", "parameters": {"query": "go", "n": 3}}`, "internet_search", "go", false},
		{"none", "Just an answer.", "", "", false},
		{"malformed", `{"tool": "internet_search", "parameters": {"query": go}}`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := ParseToolCall(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedToolCall) {
					t.Fatalf("Expected ErrMalformedToolCall, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.tool == "" {
				if call != nil {
					t.Errorf("Expected no tool call, got %+v", call)
				}
				return
			}
			if call == nil {
				t.Fatal("Expected a tool call")
			}
			if call.Tool != tt.tool || call.Parameters["query"] != tt.query {
				t.Errorf("Unexpected call: %+v", call)
			}
		})
	}
}

// ==================== End to end ====================

type pageSearcher []models.SearchResult

func (p pageSearcher) Search(context.Context, string, int) ([]models.SearchResult, error) {
	return p, nil
}

type pageFetcher map[string]string

func (p pageFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	text, ok := p[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return &fetch.Page{URL: url, ContentType: "text/html", Body: []byte(text)}, nil
}

func TestSimple_EndToEnd(t *testing.T) {
	pipeline := retrieval.New(
		pageSearcher{{URL: "https://en.wikipedia.org/wiki/Paris"}},
		pageFetcher{"https://en.wikipedia.org/wiki/Paris": "<html><body><p>Paris is the capital of France.</p></body></html>"},
		fetch.NewExtractor(),
		chunker.New(tokenizer.WordsFactory, 256, 192),
		ranker.New(embedding.NewHash(128)),
	)
	c := &scriptedCompleter{replies: []string{"The capital of France is Paris ([en.wikipedia.org](https://en.wikipedia.org/wiki/Paris))."}}

	events := collect(NewSimple(deps(pipeline, c), 15, 1).Run(context.Background(), "capital of France", creds))

	final := events[len(events)-1]
	if final.Type != models.EventOutput {
		t.Fatalf("Expected output event, got %s", types(events))
	}
	out := final.Content.(string)
	if !strings.Contains(out, `href="https://en.wikipedia.org/wiki/Paris"`) || !strings.Contains(out, ">en.wikipedia.org</a>") {
		t.Errorf("Expected hyperlink in output, got %q", out)
	}

	prompt := c.seen[0][1].Content
	if !strings.Contains(prompt, "--- Top Chunk #1 ---\nParis is the capital of France.\nSource: https://en.wikipedia.org/wiki/Paris") {
		t.Errorf("Expected ranked chunk in prompt, got %q", prompt)
	}
}
