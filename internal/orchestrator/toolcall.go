package orchestrator

import (
	"errors"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

// ErrMalformedToolCall means a tool call was found but its parameters are not valid JSON
var ErrMalformedToolCall = errors.New("malformed tool call")

// toolCallPattern locates a tool call anywhere in free-form model output.
// The parameter body is lazy, so it ends at the first "}" followed by the closing brace.
var toolCallPattern = regexp.MustCompile(`(?s)\{\s*"tool":\s*"(.*?)",\s*"parameters":\s*\{(.*?)\}\s*\}`)

// ParseToolCall extracts a tool call from model text.
// It returns nil, nil when the text holds no tool call.
func ParseToolCall(text string) (*models.ToolCall, error) {
	m := toolCallPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}

	tool, body := m[1], m[2]
	params := "{" + body + "}"
	if !gjson.Valid(params) {
		return nil, ErrMalformedToolCall
	}

	parsed := gjson.Parse(params)
	if !parsed.IsObject() {
		return nil, ErrMalformedToolCall
	}

	call := &models.ToolCall{
		Tool:       tool,
		Parameters: make(map[string]string),
		Raw:        `{"tool": "` + tool + `", "parameters": {` + body + `}}`,
	}
	parsed.ForEach(func(key, value gjson.Result) bool {
		call.Parameters[key.String()] = value.String()
		return true
	})

	return call, nil
}
