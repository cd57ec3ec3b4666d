package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

// ErrCompletion wraps every failure of the completion API
var ErrCompletion = errors.New("completion failed")

// Completion is one model reply. Usage is nil when the API did not report it.
type Completion struct {
	Content string
	Usage   *models.Usage
}

// Completer sends a conversation to a chat completion API
type Completer interface {
	Complete(ctx context.Context, creds models.Credentials, messages []models.Message, temperature float64) (*Completion, error)
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
// A client is built per call from the caller's credentials.
type OpenAI struct {
	timeout    time.Duration
	maxRetries int
}

func NewOpenAI(timeout time.Duration) *OpenAI {
	return &OpenAI{timeout: timeout, maxRetries: 2}
}

func (o *OpenAI) Complete(ctx context.Context, creds models.Credentials, messages []models.Message, temperature float64) (*Completion, error) {
	if !creds.Complete() {
		return nil, fmt.Errorf("%w: missing credentials", ErrCompletion)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(creds.APIKey),
		option.WithBaseURL(creds.BaseURL),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.timeout))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(creds.Model),
		Messages:    toParams(messages),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrCompletion)
	}

	completion := &Completion{Content: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		completion.Usage = &models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return completion, nil
}

func toParams(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}
