package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var inlineCode = regexp.MustCompile("`[^`]*`")

// Renderer converts model answers from markdown to sanitized HTML
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
		policy: bluemonday.UGCPolicy(),
	}
}

// HTML escapes stray markup, fixes list spacing, renders and sanitizes
func (r *Renderer) HTML(markdown string) (string, error) {
	text := EscapeOutsideCode(markdown)
	text = SpaceLists(text)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return r.policy.Sanitize(buf.String()), nil
}

// EscapeOutsideCode escapes angle brackets everywhere except inside fenced
// blocks and inline code spans. A line whose trimmed text starts with ```
// toggles the fenced state.
func EscapeOutsideCode(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			lines[i] = escapeLine(line)
		}
	}

	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	spans := inlineCode.FindAllStringIndex(line, -1)
	if len(spans) == 0 {
		return escapeText(line)
	}

	var sb strings.Builder
	last := 0
	for _, span := range spans {
		sb.WriteString(escapeText(line[last:span[0]]))
		sb.WriteString(line[span[0]:span[1]])
		last = span[1]
	}
	sb.WriteString(escapeText(line[last:]))
	return sb.String()
}

var textEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// SpaceLists inserts a blank line before a "- " or "* " list line that directly
// follows a paragraph line, so the list is not folded into the paragraph.
// Fenced blocks are left alone.
func SpaceLists(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && i > 0 && isListItem(line) {
			prev := lines[i-1]
			if strings.TrimSpace(prev) != "" && !isListItem(prev) {
				out = append(out, "")
			}
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
}
