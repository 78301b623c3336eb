package render

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTemplate reports broken placeholder syntax or an unreadable document.
	ErrMalformedTemplate = errors.New("malformed template")
	// ErrUnknownField reports a placeholder with no matching record field.
	ErrUnknownField = errors.New("unknown template field")
)

type placeholder struct {
	start int
	end   int
	name  string
}

// scanPlaceholders finds {name} markers. Braces must pair up on one
// paragraph; loop, condition and raw tags are rejected.
func scanPlaceholders(text string) ([]placeholder, error) {
	var out []placeholder
	open := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if open >= 0 {
				return nil, fmt.Errorf("%w: nested '{' in %q", ErrMalformedTemplate, excerpt(text, open))
			}
			open = i
		case '}':
			if open < 0 {
				return nil, fmt.Errorf("%w: unmatched '}' in %q", ErrMalformedTemplate, excerpt(text, i))
			}
			name := strings.TrimSpace(text[open+1 : i])
			if name == "" {
				return nil, fmt.Errorf("%w: empty placeholder in %q", ErrMalformedTemplate, excerpt(text, open))
			}
			if strings.ContainsAny(name[:1], "#/^@") {
				return nil, fmt.Errorf("%w: unsupported tag {%s}", ErrMalformedTemplate, name)
			}
			out = append(out, placeholder{start: open, end: i + 1, name: name})
			open = -1
		}
	}
	if open >= 0 {
		return nil, fmt.Errorf("%w: unclosed '{' in %q", ErrMalformedTemplate, excerpt(text, open))
	}
	return out, nil
}

// Names lists the distinct placeholder names in text, in order of appearance.
func Names(text string) ([]string, error) {
	found, err := scanPlaceholders(text)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(found))
	names := make([]string, 0, len(found))
	for _, p := range found {
		if _, ok := seen[p.name]; ok {
			continue
		}
		seen[p.name] = struct{}{}
		names = append(names, p.name)
	}
	return names, nil
}

// Substitute replaces every {name} in text with fields[name].
func Substitute(text string, fields map[string]string) (string, error) {
	found, err := scanPlaceholders(text)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, p := range found {
		value, ok := fields[p.name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownField, p.name)
		}
		b.WriteString(text[last:p.start])
		b.WriteString(value)
		last = p.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func excerpt(text string, at int) string {
	start := at - 20
	if start < 0 {
		start = 0
	}
	end := at + 20
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
