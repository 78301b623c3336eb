package batches

import "testing"

func TestFileNamesCarryBatchPrefix(t *testing.T) {
	files := FileNames("5b0e7c2a-8f43-4d61-9b1c-6a3f0e2d9c11", "Jane/Smith")
	if files.Docx != "5b0e7c2a-8f43-4d61-9b1c-6a3f0e2d9c11_Jane_Smith_letter.docx" {
		t.Fatalf("unexpected docx name %q", files.Docx)
	}
	if files.PDF != "5b0e7c2a-8f43-4d61-9b1c-6a3f0e2d9c11_Jane_Smith_letter.pdf" {
		t.Fatalf("unexpected pdf name %q", files.PDF)
	}
}

func TestFileNamesCollideOnlyWithinBatch(t *testing.T) {
	a := FileNames("11111111-1111-1111-1111-111111111111", "Jane Smith")
	b := FileNames("11111111-1111-1111-1111-111111111111", "Jane Smith")
	c := FileNames("22222222-2222-2222-2222-222222222222", "Jane Smith")
	if a != b {
		t.Fatalf("expected same names within a batch")
	}
	if a == c {
		t.Fatalf("expected distinct names across batches")
	}
}

func TestDownloadName(t *testing.T) {
	if got := DownloadName("11111111-1111-1111-1111-111111111111_Jane Smith_letter.pdf"); got != "Jane Smith_letter.pdf" {
		t.Fatalf("unexpected download name %q", got)
	}
	if got := DownloadName("Jane Smith_letter.pdf"); got != "Jane Smith_letter.pdf" {
		t.Fatalf("expected legacy name unchanged, got %q", got)
	}
}
