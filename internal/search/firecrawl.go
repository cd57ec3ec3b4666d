package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// FirecrawlProvider implements the Provider interface using Firecrawl API
type FirecrawlProvider struct {
	name    string
	apiKey  string
	baseURL string
	timeout int
	client  *http.Client
}

// NewFirecrawlProvider creates a new Firecrawl provider
func NewFirecrawlProvider(name string, cfg *config.ProviderConfig) *FirecrawlProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev/v2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}

	return &FirecrawlProvider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// Name returns the provider name
func (p *FirecrawlProvider) Name() string {
	return p.name
}

func (p *FirecrawlProvider) Type() string {
	return "firecrawl"
}

// IsAvailable returns true if the provider is properly configured
func (p *FirecrawlProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// firecrawlSearchRequest represents the search request body
type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// firecrawlSearchResponse represents the search response
type firecrawlSearchResponse struct {
	Success bool                 `json:"success"`
	Data    *firecrawlSearchData `json:"data,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// firecrawlSearchData represents the data structure in response
type firecrawlSearchData struct {
	Web []firecrawlSearchResult `json:"web,omitempty"`
}

// firecrawlSearchResult represents a single search result
type firecrawlSearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
}

// Search performs a search query using Firecrawl
func (p *FirecrawlProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx, logger.Named("search"))

	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	bodyBytes, err := json.Marshal(firecrawlSearchRequest{
		Query: query,
		Limit: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout)*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/search", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("firecrawl response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	var searchResp firecrawlSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !searchResp.Success {
		errMsg := searchResp.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", errMsg)
	}

	var results []models.SearchResult
	if searchResp.Data != nil {
		for _, item := range searchResp.Data.Web {
			if item.URL == "" {
				continue
			}
			results = append(results, models.SearchResult{
				Title:   item.Title,
				URL:     item.URL,
				Content: item.Markdown,
				Snippet: item.Description,
			})
			if maxResults > 0 && len(results) >= maxResults {
				break
			}
		}
	}

	log.Info("firecrawl search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}
