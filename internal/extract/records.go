package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"mailmerge-backend/merge/model"
)

var (
	// ErrUnreadableData means the data file could not be parsed as a spreadsheet.
	ErrUnreadableData = errors.New("unreadable data file")
	// ErrNoRecords means the data file has a header row but no data rows.
	ErrNoRecords = errors.New("no records in data file")
)

// Table is the parsed data file: header names plus one Record per data row.
type Table struct {
	Headers []string
	Records []model.Record
}

// HasHeader reports whether name is one of the header fields.
func (t Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// ExtractRecords parses a spreadsheet. Row 1 names the fields; every later
// non-empty row becomes a Record, in sheet order.
func ExtractRecords(ctx context.Context, data []byte, fileName string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	if len(data) == 0 {
		return Table{}, fmt.Errorf("%w: empty file", ErrUnreadableData)
	}

	var (
		rows [][]string
		err  error
	)
	switch f := detectFormat("", fileName, data); {
	case f == formatXLSX:
		rows, err = readXLSXRows(data)
	case f == formatCSV, f == formatUnknown && looksLikeText(data):
		rows, err = readCSVRows(data)
	default:
		return Table{}, fmt.Errorf("%w: unsupported format for %q", ErrUnreadableData, fileName)
	}
	if err != nil {
		return Table{}, err
	}
	return buildTable(rows)
}

func readXLSXRows(data []byte) ([][]string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableData, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableData)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrUnreadableData, sheets[0], err)
	}
	return rows, nil
}

func readCSVRows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableData, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func buildTable(rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("%w: missing header row", ErrNoRecords)
	}

	type column struct {
		index int
		name  string
	}
	var columns []column
	seen := map[string]struct{}{}
	for i, raw := range rows[0] {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		columns = append(columns, column{index: i, name: name})
	}
	if len(columns) == 0 {
		return Table{}, fmt.Errorf("%w: header row is empty", ErrNoRecords)
	}

	table := Table{Headers: make([]string, len(columns))}
	for i, c := range columns {
		table.Headers[i] = c.name
	}

	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		fields := make(map[string]string, len(columns))
		for _, c := range columns {
			value := ""
			if c.index < len(row) {
				value = row[c.index]
			}
			fields[c.name] = value
		}
		table.Records = append(table.Records, model.Record{Row: i + 2, Fields: fields})
	}

	if len(table.Records) == 0 {
		return Table{}, fmt.Errorf("%w: only a header row was found", ErrNoRecords)
	}
	return table, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
