package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	paragraphPattern = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>.*?</w:p>`)
	textRunPattern   = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	sectionPartName  = regexp.MustCompile(`^word/(?:header|footer)\d*\.xml$`)
)

const preserveOpen = `<w:t xml:space="preserve">`

// Template is a parsed DOCX template. It is safe to render concurrently;
// every Render works on its own copy of the document.
type Template struct {
	data         []byte
	sections     map[string]string
	placeholders []string
}

// Parse opens a DOCX template and validates its placeholder syntax.
func Parse(data []byte) (*Template, error) {
	content, err := readContent(data)
	if err != nil {
		return nil, err
	}

	sections, err := readSections(data)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := map[string]struct{}{}
	collect := func(xmlText string) error {
		for _, para := range paragraphPattern.FindAllString(xmlText, -1) {
			found, err := Names(paragraphText(para))
			if err != nil {
				return err
			}
			for _, name := range found {
				if _, ok := seen[name]; ok {
					continue
				}
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
		return nil
	}
	if err := collect(content); err != nil {
		return nil, err
	}
	for _, part := range sortedParts(sections) {
		if err := collect(sections[part]); err != nil {
			return nil, fmt.Errorf("%s: %w", part, err)
		}
	}

	return &Template{data: data, sections: sections, placeholders: names}, nil
}

// Placeholders returns the distinct placeholder names in the body, headers and footers.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Render fills every placeholder with the matching field and returns the DOCX bytes.
func (t *Template) Render(ctx context.Context, fields map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replace, err := docx.ReadDocxFromMemory(bytes.NewReader(t.data), int64(len(t.data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	defer replace.Close()
	doc := replace.Editable()

	body, err := renderBodyXML(doc.GetContent(), fields)
	if err != nil {
		return nil, err
	}
	doc.SetContent(body)

	rendered := make(map[string]string, len(t.sections))
	for _, part := range sortedParts(t.sections) {
		xmlText, err := renderBodyXML(t.sections[part], fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part, err)
		}
		rendered[part] = xmlText
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := doc.Write(&out); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	if len(rendered) == 0 {
		return out.Bytes(), nil
	}
	return replaceParts(out.Bytes(), rendered)
}

// readSections returns the raw XML of every header and footer part.
func readSections(data []byte) (map[string]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	sections := map[string]string{}
	for _, file := range reader.File {
		if !sectionPartName.MatchString(file.Name) {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedTemplate, file.Name, err)
		}
		sections[file.Name] = string(content)
	}
	return sections, nil
}

// replaceParts copies the archive, swapping in the given part contents.
func replaceParts(data []byte, parts map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reopen docx: %w", err)
	}
	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	for _, file := range reader.File {
		content, ok := parts[file.Name]
		var body []byte
		if ok {
			body = []byte(content)
		} else {
			body, err = readZipFile(file)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", file.Name, err)
			}
		}
		w, err := writer.CreateHeader(&zip.FileHeader{Name: file.Name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", file.Name, err)
		}
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("write %s: %w", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return out.Bytes(), nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func sortedParts(parts map[string]string) []string {
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readContent(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrMalformedTemplate)
	}
	replace, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	defer replace.Close()
	content := replace.Editable().GetContent()
	if !strings.Contains(content, "<w:body") {
		return "", fmt.Errorf("%w: document body not found", ErrMalformedTemplate)
	}
	return content, nil
}

// renderBodyXML substitutes placeholders paragraph by paragraph. Word splits
// text across runs freely, so the merged paragraph text is substituted and
// written back into the first run, leaving the others empty.
func renderBodyXML(content string, fields map[string]string) (string, error) {
	var firstErr error
	out := paragraphPattern.ReplaceAllStringFunc(content, func(para string) string {
		if firstErr != nil {
			return para
		}
		text := paragraphText(para)
		if !strings.ContainsAny(text, "{}") {
			return para
		}
		updated, err := Substitute(text, fields)
		if err != nil {
			firstErr = err
			return para
		}
		if updated == text {
			return para
		}
		return rewriteParagraph(para, updated)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func paragraphText(para string) string {
	var b strings.Builder
	for _, m := range textRunPattern.FindAllStringSubmatch(para, -1) {
		b.WriteString(html.UnescapeString(m[1]))
	}
	return b.String()
}

func rewriteParagraph(para, text string) string {
	matches := textRunPattern.FindAllStringIndex(para, -1)
	if len(matches) == 0 {
		return para
	}
	var b strings.Builder
	last := 0
	for i, m := range matches {
		b.WriteString(para[last:m[0]])
		if i == 0 {
			b.WriteString(preserveOpen)
			b.WriteString(encodeText(text))
			b.WriteString("</w:t>")
		} else {
			b.WriteString("<w:t></w:t>")
		}
		last = m[1]
	}
	b.WriteString(para[last:])
	return b.String()
}

// encodeText escapes text for a w:t element and turns newlines into line breaks.
func encodeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("</w:t><w:br/>" + preserveOpen)
		}
		var esc bytes.Buffer
		_ = xml.EscapeText(&esc, []byte(line))
		b.Write(esc.Bytes())
	}
	return b.String()
}
