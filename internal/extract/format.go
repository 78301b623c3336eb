package extract

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

type format string

const (
	formatUnknown format = ""
	formatPDF     format = "pdf"
	formatDOCX    format = "docx"
	formatXLSX    format = "xlsx"
	formatCSV     format = "csv"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// detectFormat resolves a payload format from its declared content type,
// file name and, for zip containers, the OOXML part names inside.
func detectFormat(contentType, fileName string, data []byte) format {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case mimePDF:
		return formatPDF
	case mimeDOCX:
		return formatDOCX
	case mimeXLSX:
		return formatXLSX
	case "text/csv", "application/csv":
		return formatCSV
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	case ".xlsx", ".xlsm", ".xltx":
		return formatXLSX
	case ".csv":
		return formatCSV
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return formatPDF
	}
	if mapped := mapOOXMLFromZip(data); mapped != formatUnknown {
		return mapped
	}
	return formatUnknown
}

func mapOOXMLFromZip(data []byte) format {
	if len(data) == 0 {
		return formatUnknown
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return formatUnknown
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return formatDOCX
		case "xl/workbook.xml":
			return formatXLSX
		}
	}
	return formatUnknown
}

func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	// tolerate a rune cut at the sample boundary
	for i := 0; i < utf8.UTFMax && len(sample) > 0 && !utf8.Valid(sample); i++ {
		sample = sample[:len(sample)-1]
	}
	return utf8.Valid(sample)
}
