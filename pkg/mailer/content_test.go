package mailer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

func TestRenderContent(t *testing.T) {
	t.Parallel()

	t.Run("markdown to html and text", func(t *testing.T) {
		t.Parallel()

		c, err := mailer.RenderContent("# Spring update\n\nFish & chips on **Friday**.")
		require.NoError(t, err)

		assert.Contains(t, c.HTML, "<h1>Spring update</h1>")
		assert.Contains(t, c.HTML, "<strong>Friday</strong>")
		assert.Contains(t, c.PlainText, "Spring update")
		assert.Contains(t, c.PlainText, "Fish & chips on Friday.")
		assert.NotContains(t, c.PlainText, "<")
		assert.Empty(t, c.Metadata)
	})

	t.Run("frontmatter", func(t *testing.T) {
		t.Parallel()

		c, err := mailer.RenderContent("---\npreview: Hello there\n---\n# Title\n")
		require.NoError(t, err)

		assert.Equal(t, "Hello there", c.MetaString("preview"))
		assert.Equal(t, "", c.MetaString("missing"))
		assert.Equal(t, "# Title\n", c.Markdown)
		assert.Contains(t, c.HTML, "<h1>Title</h1>")
	})

	t.Run("unterminated frontmatter", func(t *testing.T) {
		t.Parallel()

		_, err := mailer.RenderContent("---\npreview: x\n# Title")
		require.ErrorIs(t, err, mailer.ErrInvalidFrontmatter)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		_, err := mailer.RenderContent("---\n: [\n---\nbody")
		require.ErrorIs(t, err, mailer.ErrInvalidFrontmatter)
	})

	t.Run("button", func(t *testing.T) {
		t.Parallel()

		c, err := mailer.RenderContent("[!button|Read more](https://example.com/post)")
		require.NoError(t, err)

		assert.Contains(t, c.HTML, `href="https://example.com/post"`)
		assert.Contains(t, c.HTML, `class="btn"`)
		assert.Contains(t, c.PlainText, "Read more")
	})
}

func TestContentRenderer_Sanitizes(t *testing.T) {
	t.Parallel()

	r := mailer.NewContentRenderer("cta")

	tests := []struct {
		name      string
		source    string
		forbidden string
	}{
		{name: "raw script", source: "Hi <script>alert(1)</script>", forbidden: "<script"},
		{name: "event handler", source: `<img src="x" onerror="alert(1)">`, forbidden: "onerror"},
		{name: "javascript link", source: "[click](javascript:alert(1))", forbidden: "javascript:"},
		{name: "javascript button", source: "[!button|Go](javascript:alert(1))", forbidden: "javascript:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := r.Render(tt.source)
			require.NoError(t, err)
			assert.NotContains(t, c.HTML, tt.forbidden)
		})
	}

	c, err := r.Render("[!button|Go](https://example.com)")
	require.NoError(t, err)
	assert.Contains(t, c.HTML, `class="cta"`)
}
