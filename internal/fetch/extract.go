package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a page yields no usable text
var ErrNoText = errors.New("no text extracted")

// Elements that never carry article text
const boilerplate = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, button, template"

// Elements whose boundaries become line breaks
const blocks = "p, div, section, article, main, li, ul, ol, h1, h2, h3, h4, h5, h6, pre, blockquote, table, tr, td, th, br, dd, dt"

// Extractor turns fetched pages into plain text.
// HTML, PDF and plain text are supported.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(page *Page) (string, error) {
	if page == nil || len(page.Body) == 0 {
		return "", ErrNoText
	}

	var (
		text string
		err  error
	)

	switch mediaType(page) {
	case "text/html", "application/xhtml+xml":
		text, err = extractHTML(page.Body)
	case "application/pdf":
		text, err = extractPDF(page.Body)
	case "text/plain", "text/markdown":
		text = string(page.Body)
	default:
		return "", fmt.Errorf("unsupported content type %q", page.ContentType)
	}
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func mediaType(page *Page) string {
	if page.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(page.ContentType); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(page.Body))
	return mt
}

func extractHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find(boilerplate).Remove()
	doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	root := doc.Find("article").First()
	if root.Length() == 0 || len(strings.TrimSpace(root.Text())) < 200 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	return root.Text(), nil
}

func extractPDF(body []byte) (text string, err error) {
	// The pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}
	return buf.String(), nil
}

// normalize collapses runs of spaces and drops blank lines
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
