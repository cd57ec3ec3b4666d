package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

const ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgRateLimit allows one query per second across all DuckDuckGo providers
var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// DuckDuckGoProvider scrapes the DuckDuckGo lite HTML page. It needs no API key.
type DuckDuckGoProvider struct {
	name       string
	endpoint   string
	client     *http.Client
	maxRetries int
	minGap     time.Duration
}

// NewDuckDuckGoProvider creates a new DuckDuckGo provider
func NewDuckDuckGoProvider(name string, cfg *config.ProviderConfig) *DuckDuckGoProvider {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = "https://lite.duckduckgo.com/lite/"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15
	}

	return &DuckDuckGoProvider{
		name:       name,
		endpoint:   endpoint,
		client:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		maxRetries: 3,
		minGap:     time.Second,
	}
}

func (p *DuckDuckGoProvider) Name() string {
	return p.name
}

func (p *DuckDuckGoProvider) Type() string {
	return "duckduckgo"
}

func (p *DuckDuckGoProvider) IsAvailable() bool {
	return p.endpoint != ""
}

// Search posts the query to the lite endpoint and parses the result links
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx, logger.Named("search"))

	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	var resp *http.Response
	delay := time.Second
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", ddgUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= p.maxRetries {
			break
		}
		resp.Body.Close()

		// Back off on 429, doubling the delay each time
		log.Debug("duckduckgo rate limited, backing off", zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	results, err := parseLiteResults(resp.Body, maxResults)
	if err != nil {
		return nil, err
	}

	log.Info("duckduckgo search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}

func (p *DuckDuckGoProvider) wait(ctx context.Context) error {
	if p.minGap <= 0 {
		return nil
	}

	ddgRateLimit.mu.Lock()
	defer ddgRateLimit.mu.Unlock()

	if wait := time.Until(ddgRateLimit.last.Add(p.minGap)); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ddgRateLimit.last = time.Now()
	return nil
}

// parseLiteResults extracts result links and snippets from the lite HTML page
func parseLiteResults(r io.Reader, maxResults int) ([]models.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	snippets := doc.Find("td.result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return strings.Join(strings.Fields(s.Text()), " ")
	})

	var results []models.SearchResult
	seen := make(map[string]bool)

	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		link := unwrapRedirect(href)
		title := strings.TrimSpace(s.Text())

		if link == "" || title == "" || seen[link] || isAdLink(link) {
			return true
		}
		seen[link] = true

		result := models.SearchResult{Title: title, URL: link}
		if i < len(snippets) {
			result.Snippet = snippets[i]
		}
		results = append(results, result)

		return maxResults <= 0 || len(results) < maxResults
	})

	return results, nil
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target> links into the target URL
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func isAdLink(link string) bool {
	return strings.Contains(link, "duckduckgo.com/y.js") || strings.Contains(link, "ad_provider=")
}
