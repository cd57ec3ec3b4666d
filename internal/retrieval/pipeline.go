package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/fetch"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// Empty result reasons
const (
	ReasonNoURLs    = "no_urls"
	ReasonNoContent = "no_content"
)

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

type Extractor interface {
	Extract(page *fetch.Page) (string, error)
}

type Splitter interface {
	Split(text, sourceURL string) []models.Chunk
}

type Ranker interface {
	Rank(ctx context.Context, query string, chunks []models.Chunk, topK int) ([]models.Chunk, error)
}

// Request describes one retrieval pass
type Request struct {
	Query       string // ranking query, never augmented
	SearchQuery string // query sent to the search provider, defaults to Query
	MaxURLs     int    // successful extractions to collect
	TopK        int
}

// Result is either ranked chunks or an empty result with a reason
type Result struct {
	Chunks []models.Chunk
	Reason string
}

// Empty reports whether the pass produced no chunks
func (r *Result) Empty() bool {
	return r.Reason != ""
}

type Pipeline struct {
	searcher   Searcher
	fetcher    Fetcher
	extractor  Extractor
	splitter   Splitter
	ranker     Ranker
	maxResults int
	exclude    []string
}

type Option func(*Pipeline)

// WithMaxResults sets how many candidates to request from the search provider
func WithMaxResults(n int) Option {
	return func(p *Pipeline) { p.maxResults = n }
}

// WithExcludePatterns skips candidates whose host/path matches any glob
func WithExcludePatterns(patterns []string) Option {
	return func(p *Pipeline) {
		for _, pattern := range patterns {
			if !doublestar.ValidatePattern(pattern) {
				logger.Warn("ignoring invalid exclude pattern", zap.String("pattern", pattern))
				continue
			}
			p.exclude = append(p.exclude, pattern)
		}
	}
}

func New(searcher Searcher, fetcher Fetcher, extractor Extractor, splitter Splitter, ranker Ranker, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher:   searcher,
		fetcher:    fetcher,
		extractor:  extractor,
		splitter:   splitter,
		ranker:     ranker,
		maxResults: 10,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve searches, fetches, chunks and ranks. Search failures and per-URL
// failures never surface as errors; only a ranking failure does.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx, logger.Named("retrieval"))

	searchQuery := req.SearchQuery
	if searchQuery == "" {
		searchQuery = req.Query
	}

	candidates, err := p.searcher.Search(ctx, searchQuery, p.maxResults)
	if err != nil {
		log.Warn("search failed, treating as no results", zap.String("query", searchQuery), zap.Error(err))
		candidates = nil
	}
	if len(candidates) == 0 {
		return &Result{Reason: ReasonNoURLs}, nil
	}

	var (
		pool    []models.Chunk
		sources []string
	)
	for _, c := range candidates {
		if len(sources) >= req.MaxURLs {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		link := EnsureScheme(c.URL)
		if link == "" || p.excluded(link) {
			continue
		}

		text, err := p.extract(ctx, link)
		if err != nil {
			log.Debug("skipping url", zap.String("url", link), zap.Error(err))
			continue
		}

		sources = append(sources, link)
		pool = append(pool, p.splitter.Split(text, link)...)
	}

	if len(pool) == 0 {
		return &Result{Reason: ReasonNoContent}, nil
	}

	ranked, err := p.ranker.Rank(ctx, req.Query, pool, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to rank chunks: %w", err)
	}

	log.Info("retrieval completed",
		zap.String("query", searchQuery),
		zap.Int("candidates", len(candidates)),
		zap.Int("sources", len(sources)),
		zap.Int("chunks", len(pool)),
		zap.Int("ranked", len(ranked)),
	)

	ReportSources(ctx, sources)
	return &Result{Chunks: ranked}, nil
}

type sourceSinkKey struct{}

// ContextWithSourceSink attaches fn to ctx. Every retrieval pass run with the
// returned context calls fn with the URLs whose text made it into ranking.
func ContextWithSourceSink(ctx context.Context, fn func(urls []string)) context.Context {
	return context.WithValue(ctx, sourceSinkKey{}, fn)
}

// ReportSources passes urls to the sink attached to ctx, if any
func ReportSources(ctx context.Context, sources []string) {
	if fn, ok := ctx.Value(sourceSinkKey{}).(func([]string)); ok && len(sources) > 0 {
		fn(sources)
	}
}

func (p *Pipeline) extract(ctx context.Context, link string) (string, error) {
	page, err := p.fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	return p.extractor.Extract(page)
}

func (p *Pipeline) excluded(link string) bool {
	if len(p.exclude) == 0 {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	target := u.Host + u.Path
	for _, pattern := range p.exclude {
		if ok, _ := doublestar.Match(pattern, target); ok {
			return true
		}
	}
	return false
}

// EnsureScheme prefixes https:// when the URL has no scheme
func EnsureScheme(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	if !strings.Contains(link, "://") {
		return "https://" + link
	}
	return link
}

// FormatChunks renders ranked chunks as numbered blocks for a prompt
func FormatChunks(chunks []models.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "--- Top Chunk #%d ---\n%s\n\n", i+1, c.Text)
	}
	return sb.String()
}
