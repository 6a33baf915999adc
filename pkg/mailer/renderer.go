package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
)

//go:embed layouts/*.html
var layoutsFS embed.FS

// DefaultLayout is the embedded layout used when none is configured.
const DefaultLayout = "layouts/broadcast.html"

// Message is everything a layout can show.
type Message struct {
	From        string
	To          string
	Subject     string
	PreviewText string
	HTML        string
	PlainText   string
	Markdown    string
	// Token is the signed unsubscribe token. Empty for test sends, in which
	// case no unsubscribe link is rendered.
	Token string
}

// Renderer produces the final HTML document for a message.
type Renderer interface {
	Render(msg Message) (string, error)
}

// LayoutRenderer wraps message HTML into an html/template layout.
type LayoutRenderer struct {
	layout         *template.Template
	unsubscribeURL *url.URL
}

// LayoutOption configures a LayoutRenderer.
type LayoutOption func(*layoutOptions)

type layoutOptions struct {
	fsys fs.FS
	name string
}

// WithLayout loads the layout from fsys instead of the embedded default.
func WithLayout(fsys fs.FS, name string) LayoutOption {
	return func(o *layoutOptions) {
		o.fsys = fsys
		o.name = name
	}
}

// NewLayoutRenderer parses the layout once. cfg.UnsubscribeURL must be absolute.
func NewLayoutRenderer(cfg Config, opts ...LayoutOption) (*LayoutRenderer, error) {
	o := &layoutOptions{fsys: layoutsFS, name: DefaultLayout}
	for _, opt := range opts {
		opt(o)
	}

	base, err := url.Parse(cfg.UnsubscribeURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.UnsubscribeURL)
	}

	raw, err := fs.ReadFile(o.fsys, o.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, o.name, err)
	}

	tmpl, err := template.New(o.name).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse layout %s: %v", ErrRenderFailed, o.name, err)
	}

	return &LayoutRenderer{layout: tmpl, unsubscribeURL: base}, nil
}

// Render executes the layout. Message HTML is trusted: it must come from ContentRenderer.
func (r *LayoutRenderer) Render(msg Message) (string, error) {
	data := map[string]any{
		"Content":        template.HTML(msg.HTML), //nolint:gosec // sanitized by ContentRenderer
		"Subject":        msg.Subject,
		"PreviewText":    msg.PreviewText,
		"To":             msg.To,
		"From":           msg.From,
		"UnsubscribeURL": r.UnsubscribeURL(msg.Token),
	}

	var buf bytes.Buffer
	if err := r.layout.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// UnsubscribeURL returns the link for token, or "" when token is empty.
func (r *LayoutRenderer) UnsubscribeURL(token string) string {
	if token == "" {
		return ""
	}
	u := *r.unsubscribeURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
