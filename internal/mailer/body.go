package mailer

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var htmlPolicy = bluemonday.UGCPolicy()

// renderHTML converts a markdown body to sanitized HTML.
func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return htmlPolicy.Sanitize(buf.String()), nil
}
