// Package markdown renders post bodies to sanitized HTML and strips markup from
// plain-text input such as comments.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML safe to embed in a page.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewRenderer builds a GFM renderer with a UGC sanitizing policy.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
		),
		policy: policy,
		strict: bluemonday.StrictPolicy(),
	}
}

// Render converts source to sanitized HTML.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return string(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// PlainText removes every tag from s and trims surrounding whitespace.
// Entities escaped by the sanitizer are decoded again so stored text stays
// readable; output is escaped by whoever renders it.
func (r *Renderer) PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(s)))
}
