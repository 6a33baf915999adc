package mailer

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Content is broadcast body text in every representation a message needs.
type Content struct {
	Metadata  map[string]any
	HTML      string
	Markdown  string
	PlainText string
}

// MetaString returns a frontmatter value as a string, or "" when absent or not a string.
func (c *Content) MetaString(key string) string {
	if v, ok := c.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ContentRenderer turns Markdown with frontmatter into sanitized HTML and plain text.
// It is safe for concurrent use.
type ContentRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

var (
	classPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	blankLinePattern = regexp.MustCompile(`\n{3,}`)
)

// NewContentRenderer creates a renderer whose buttons carry the given CSS class.
func NewContentRenderer(buttonClass string) *ContentRenderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(classPattern).OnElements("a")

	return &ContentRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				NewButtonExtension(buttonClass),
			),
		),
		policy: policy,
		strict: bluemonday.StrictPolicy(),
	}
}

var defaultContentRenderer = NewContentRenderer(DefaultButtonClass)

// RenderContent renders source with the default button class.
func RenderContent(source string) (*Content, error) {
	return defaultContentRenderer.Render(source)
}

// Render converts source. Raw HTML in the Markdown is dropped and links with
// unsafe schemes are removed.
func (r *ContentRenderer) Render(source string) (*Content, error) {
	meta, body, err := splitFrontmatter([]byte(source))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	safe := r.policy.SanitizeBytes(buf.Bytes())

	return &Content{
		Metadata:  meta,
		HTML:      string(safe),
		Markdown:  string(body),
		PlainText: r.plainText(safe),
	}, nil
}

func (r *ContentRenderer) plainText(htmlDoc []byte) string {
	text := html.UnescapeString(r.strict.Sanitize(string(htmlDoc)))
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
