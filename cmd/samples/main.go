package main

// Write a sample data workbook and letter template:
//   go run ./cmd/samples -dir ./samples

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"mailmerge-backend/internal/extract"
	"mailmerge-backend/merge/render"
)

const (
	dataFileName     = "test_data.xlsx"
	templateFileName = "test_template.docx"
	sheetName        = "Recipients"
)

var headers = []string{"to", "email", "title", "company", "position", "date"}

var sampleRows = [][]string{
	{"John Doe", "john.doe@example.com", "Mr.", "Tech Solutions Inc.", "Software Engineer", "20 April, 2025"},
	{"Jane Smith", "jane.smith@example.com", "Ms.", "Digital Innovations Ltd.", "Project Manager", "20 April, 2025"},
}

var templateLines = []string{
	"{title} {to}",
	"{position}",
	"{company}",
	"{date}",
	"",
	"Dear {title} {to},",
	"",
	"I hope this letter finds you well. I am writing to inform you about our upcoming technology conference that will be held next month.",
	"",
	"As a respected {position} at {company}, we believe your expertise and insights would be invaluable to our event. We would be honored to have you join us as a guest speaker.",
	"",
	"The conference will focus on emerging technologies and their impact on business operations. Your experience in implementing innovative solutions would provide our attendees with valuable real-world perspectives.",
	"",
	"Please let us know if you would be interested in participating. We can schedule a call to discuss the details further.",
	"",
	"Best regards,",
	"Conference Organizing Committee",
}

func main() {
	dir := flag.String("dir", ".", "output directory")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir failed: %v\n", err)
		os.Exit(1)
	}

	data, err := buildWorkbook()
	if err != nil {
		fmt.Fprintf(os.Stderr, "workbook failed: %v\n", err)
		os.Exit(1)
	}
	template, err := buildTemplate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "template failed: %v\n", err)
		os.Exit(1)
	}

	if err := validateSamples(template, data); err != nil {
		fmt.Fprintf(os.Stderr, "sample validation failed: %v\n", err)
		os.Exit(1)
	}

	dataPath := filepath.Join(*dir, dataFileName)
	templatePath := filepath.Join(*dir, templateFileName)
	if err := os.WriteFile(dataPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(templatePath, template, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: wrote %s and %s\n", dataPath, templatePath)
}

func buildWorkbook() ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}
	rows := append([][]string{headers}, sampleRows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := book.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	if err := book.SetCellStyle(sheetName, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}
	if err := book.SetColWidth(sheetName, "A", lastCol, 20); err != nil {
		return nil, err
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildTemplate() ([]byte, error) {
	var body strings.Builder
	for _, line := range templateLines {
		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(line)); err != nil {
			return nil, err
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.Write(escaped.Bytes())
		body.WriteString(`</w:t></w:r></w:p>`)
	}

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() +
			`</w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateSamples merges the first sample row into the template and checks
// that no placeholder is left unresolved.
func validateSamples(template, data []byte) error {
	ctx := context.Background()
	tmpl, err := render.Parse(template)
	if err != nil {
		return err
	}
	table, err := extract.ExtractRecords(ctx, data, dataFileName)
	if err != nil {
		return err
	}
	for _, name := range tmpl.Placeholders() {
		if !table.HasHeader(name) {
			return fmt.Errorf("template field %q missing from workbook", name)
		}
	}
	out, err := tmpl.Render(ctx, table.Records[0].Fields)
	if err != nil {
		return err
	}
	text, err := extract.Text(ctx, out, "", templateFileName)
	if err != nil {
		return err
	}
	if idx := strings.IndexAny(text, "{}"); idx != -1 {
		return fmt.Errorf("unresolved placeholder near %q", snippetAround(text, idx, 80))
	}
	return nil
}

func snippetAround(text string, pos, maxLen int) string {
	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
