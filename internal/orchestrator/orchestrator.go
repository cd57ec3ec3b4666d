package orchestrator

import (
	"context"
	"errors"
	"html"

	"github.com/parth0cb/agentic-internet-researcher/internal/llm"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
)

// ErrAborted ends an agentic run that exceeded its turn or retry budget
var ErrAborted = errors.New("research aborted")

type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

type ContextSource interface {
	Gather(ctx context.Context) string
}

type Renderer interface {
	HTML(markdown string) (string, error)
}

// Deps are the collaborators shared by both orchestrators
type Deps struct {
	Retriever   Retriever
	Completer   llm.Completer
	Context     ContextSource
	Renderer    Renderer
	Temperature float64
}

// render converts the answer to HTML. The raw answer is returned escaped
// when rendering fails, so the caller always gets an output event.
func (d Deps) render(answer string) string {
	out, err := d.Renderer.HTML(answer)
	if err != nil {
		return "<pre>" + html.EscapeString(answer) + "</pre>"
	}
	return out
}
