// Package mailer defines the capabilities the broadcast pipeline needs from an
// email provider and ships the rendering pieces shared by every provider.
//
// A provider is split into independent capabilities:
//
//   - Sender delivers one fully rendered Email and returns the provider's message id.
//   - Renderer wraps rendered content into the final HTML document.
//   - WebhookVerifier authenticates and decodes provider delivery events.
//
// Only Sender is mandatory. Providers without webhooks simply do not implement
// WebhookVerifier.
//
// Broadcast content is Markdown with optional YAML frontmatter:
//
//	---
//	preview: Spring update
//	---
//	# Hello
//
//	[!button|Read more](https://example.com/spring)
//
// ContentRenderer converts it to sanitized HTML and plain text. LayoutRenderer
// places the HTML into a layout and appends the unsubscribe link:
//
//	layout, err := mailer.NewLayoutRenderer(cfg)
//	html, err := layout.Render(mailer.Message{
//	    Subject: "Spring update",
//	    HTML:    content.HTML,
//	    Token:   token,
//	})
package mailer
