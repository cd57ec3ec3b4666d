package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// MCPProvider implements a generic MCP (Model Context Protocol) provider.
// It works with any MCP server exposing a web search tool over streamable HTTP.
type MCPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	toolName   string // The MCP tool name to call, e.g. "brave_web_search", "search"
	queryParam string // The query parameter name, e.g. "query", "search_query"
	timeout    int
	httpClient *http.Client

	// Session management
	session      *mcp.ClientSession
	sessionMutex sync.Mutex
}

// NewMCPProvider creates a new generic MCP provider
func NewMCPProvider(name string, cfg *config.ProviderConfig) *MCPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}
	toolName := cfg.ToolName
	if toolName == "" {
		toolName = "search"
	}
	queryParam := cfg.QueryParam
	if queryParam == "" {
		queryParam = "query"
	}

	return &MCPProvider{
		name:       name,
		endpoint:   cfg.BaseURL,
		apiKey:     cfg.APIKey,
		toolName:   toolName,
		queryParam: queryParam,
		timeout:    timeout,
		httpClient: &http.Client{
			Transport: &bearerTransport{token: cfg.APIKey, base: http.DefaultTransport},
		},
	}
}

// Name returns the provider name
func (p *MCPProvider) Name() string {
	return p.name
}

func (p *MCPProvider) Type() string {
	return "mcp"
}

// IsAvailable returns true if the provider is properly configured.
// Local MCP servers often need no key, so only the endpoint is required.
func (p *MCPProvider) IsAvailable() bool {
	return p.endpoint != ""
}

// bearerTransport adds the API key to every MCP request
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// ensureSession returns the cached MCP session, connecting if needed
func (p *MCPProvider) ensureSession(ctx context.Context) (*mcp.ClientSession, error) {
	p.sessionMutex.Lock()
	defer p.sessionMutex.Unlock()

	// If we already have a session, reuse it
	if p.session != nil {
		return p.session, nil
	}

	logger.Debug("initializing new MCP session", zap.String("provider", p.name))

	client := mcp.NewClient(&mcp.Implementation{Name: "agentic-internet-researcher", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   p.endpoint,
		HTTPClient: p.httpClient,
	}, nil)
	if err != nil {
		return nil, err
	}

	logger.Debug("MCP session initialized",
		zap.String("provider", p.name),
		zap.String("session_id", session.ID()))

	p.session = session
	return session, nil
}

// clearSession drops the cached session so the next call reconnects
func (p *MCPProvider) clearSession() {
	p.sessionMutex.Lock()
	defer p.sessionMutex.Unlock()
	if p.session != nil {
		_ = p.session.Close()
		p.session = nil
	}
}

// Close closes the cached session
func (p *MCPProvider) Close() error {
	p.clearSession()
	return nil
}

// Search performs a search query using MCP
func (p *MCPProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx, logger.Named("search"))

	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing endpoint", p.name)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout)*time.Second)
	defer cancel()

	var lastErr error
	// Try up to 2 times (in case session expired)
	for attempt := 0; attempt < 2; attempt++ {
		session, err := p.ensureSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to establish MCP session: %w", err)
		}

		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      p.toolName,
			Arguments: map[string]any{p.queryParam: query},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed to call search tool: %w", err)
			}
			log.Debug("MCP call failed, reconnecting", zap.String("provider", p.name), zap.Error(err))
			p.clearSession()
			lastErr = err
			continue
		}

		text := toolText(res)
		if res.IsError {
			if text == "" {
				text = "unknown error"
			}
			return nil, fmt.Errorf("MCP error: %s", text)
		}
		if text == "" {
			return nil, errors.New("no content in response")
		}

		results := parseMCPResults(text, maxResults)
		log.Info("MCP search completed",
			zap.String("provider", p.name),
			zap.String("query", query),
			zap.Int("result_count", len(results)),
		)
		return results, nil
	}

	return nil, fmt.Errorf("failed after retry: %w", lastErr)
}

// toolText concatenates the text content items of a tool result
func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseMCPResults reads results from the tool text. Servers return a JSON array,
// a JSON string holding that array, an object with a "results" array, or plain
// text blocks with "Title:" / "URL:" lines.
func parseMCPResults(text string, maxResults int) []models.SearchResult {
	parsed := gjson.Parse(text)
	if parsed.Type == gjson.String {
		parsed = gjson.Parse(parsed.String())
	}

	var items []gjson.Result
	switch {
	case !gjson.Valid(text):
		return parseTextResults(text, maxResults)
	case parsed.IsArray():
		items = parsed.Array()
	case parsed.IsObject():
		for _, path := range []string{"results", "web.results", "data", "organic"} {
			if r := parsed.Get(path); r.IsArray() {
				items = r.Array()
				break
			}
		}
	}

	var results []models.SearchResult
	for _, item := range items {
		// Handle both link and url fields
		link := item.Get("link").String()
		if link == "" {
			link = item.Get("url").String()
		}
		if link == "" {
			continue
		}

		snippet := item.Get("snippet").String()
		if snippet == "" {
			snippet = item.Get("description").String()
		}

		results = append(results, models.SearchResult{
			Title:   item.Get("title").String(),
			URL:     link,
			Snippet: snippet,
			Content: item.Get("content").String(),
		})
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
	}

	return results
}

func parseTextResults(text string, maxResults int) []models.SearchResult {
	var results []models.SearchResult
	var current models.SearchResult

	flush := func() {
		if current.URL != "" {
			results = append(results, current)
		}
		current = models.SearchResult{}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Title:"):
			flush()
			current.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "URL:"):
			current.URL = strings.TrimSpace(strings.TrimPrefix(line, "URL:"))
		case strings.HasPrefix(line, "Description:"):
			current.Snippet = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}
	flush()

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
