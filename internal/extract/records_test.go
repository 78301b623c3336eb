package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := book.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractRecordsXLSXPreservesOrder(t *testing.T) {
	data := buildXLSX(t,
		[]interface{}{"to", "email", " company "},
		[]interface{}{"Jane Smith", "jane@example.com", "Acme"},
		[]interface{}{"", "", ""},
		[]interface{}{"Bob Lee", "bob@example.com"},
	)

	table, err := ExtractRecords(context.Background(), data, "recipients.xlsx")
	if err != nil {
		t.Fatalf("ExtractRecords: %v", err)
	}
	if len(table.Headers) != 3 || table.Headers[2] != "company" {
		t.Fatalf("unexpected headers %v", table.Headers)
	}
	if len(table.Records) != 2 {
		t.Fatalf("expected 2 records (blank row skipped), got %d", len(table.Records))
	}
	first, second := table.Records[0], table.Records[1]
	if first.DisplayName() != "Jane Smith" || first.Row != 2 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if second.DisplayName() != "Bob Lee" || second.Row != 4 {
		t.Fatalf("unexpected second record %+v", second)
	}
	if v, ok := second.Fields["company"]; !ok || v != "" {
		t.Fatalf("expected missing trailing cell to map to empty string, got %q (present=%t)", v, ok)
	}
}

func TestExtractRecordsCSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfto,email,position\nJane,jane@example.com,\"Head, Research\"\n")
	table, err := ExtractRecords(context.Background(), data, "recipients.csv")
	if err != nil {
		t.Fatalf("ExtractRecords: %v", err)
	}
	if !table.HasHeader("to") {
		t.Fatalf("expected BOM to be stripped from first header, got %v", table.Headers)
	}
	if got := table.Records[0].Get("position"); got != "Head, Research" {
		t.Fatalf("unexpected position %q", got)
	}
}

func TestExtractRecordsHeaderOnly(t *testing.T) {
	data := buildXLSX(t, []interface{}{"to", "email"})
	_, err := ExtractRecords(context.Background(), data, "recipients.xlsx")
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestExtractRecordsUnreadable(t *testing.T) {
	_, err := ExtractRecords(context.Background(), []byte("PK\x03\x04 broken zip"), "recipients.xlsx")
	if !errors.Is(err, ErrUnreadableData) {
		t.Fatalf("expected ErrUnreadableData, got %v", err)
	}
	_, err = ExtractRecords(context.Background(), []byte{0x00, 0x01, 0x02}, "blob.bin")
	if !errors.Is(err, ErrUnreadableData) {
		t.Fatalf("expected ErrUnreadableData for binary data, got %v", err)
	}
	_, err = ExtractRecords(context.Background(), nil, "empty.xlsx")
	if !errors.Is(err, ErrUnreadableData) {
		t.Fatalf("expected ErrUnreadableData for empty data, got %v", err)
	}
}

func TestExtractRecordsSniffsWorkbookWithoutExtension(t *testing.T) {
	data := buildXLSX(t,
		[]interface{}{"to", "email"},
		[]interface{}{"Jane", "jane@example.com"},
	)
	table, err := ExtractRecords(context.Background(), data, "upload")
	if err != nil {
		t.Fatalf("ExtractRecords: %v", err)
	}
	if len(table.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(table.Records))
	}
}
