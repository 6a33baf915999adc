package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var frontmatterDelimiter = []byte("---")

// splitFrontmatter separates an optional leading YAML block from the Markdown body.
// Content without a leading delimiter is returned unchanged with empty metadata.
func splitFrontmatter(content []byte) (map[string]any, []byte, error) {
	meta := make(map[string]any)

	if !bytes.HasPrefix(content, frontmatterDelimiter) {
		return meta, content, nil
	}

	rest := bytes.TrimLeft(content[len(frontmatterDelimiter):], "\r\n")
	end := bytes.Index(rest, frontmatterDelimiter)
	if end == -1 {
		return nil, nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	head := rest[:end]
	body := rest[end+len(frontmatterDelimiter):]
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))

	if len(bytes.TrimSpace(head)) > 0 {
		if err := yaml.Unmarshal(head, &meta); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return meta, body, nil
}
