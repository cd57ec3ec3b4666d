package models

// ==================== Retrieval Models ====================

// SearchResult represents a single search result returned by a search provider.
// Order within a result list is provider order, not relevance.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

// Chunk is a token-bounded span of extracted page text.
// Text already ends with a "Source: <url>" line.
type Chunk struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
}

// ==================== Conversation Models ====================

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a role-tagged message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall represents a tool invocation parsed out of model text
type ToolCall struct {
	Tool       string            `json:"tool"`
	Parameters map[string]string `json:"parameters"`
	Raw        string            `json:"-"` // normalized call text appended to the conversation
}

// FunctionDef describes a tool offered to the model
type FunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Usage represents token usage reported by the completion API
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates another usage report
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Credentials are caller-supplied and passed through to the completion API untouched
type Credentials struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// Complete returns true if every credential field is present
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.BaseURL != "" && c.Model != ""
}

// ==================== API Models ====================

// SearchRequest is the body of POST /search/{mode}.
// Credential fields are optional and override headers and configured defaults.
type SearchRequest struct {
	Query   string `json:"query"`
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
