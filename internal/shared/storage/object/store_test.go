package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	ok := map[string]string{
		"a/b.pdf":        "a/b.pdf",
		"a//b/../c.docx": "a/c.docx",
		`batch\x.pdf`:    "batch/x.pdf",
	}
	for in, want := range ok {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "/etc/passwd", "..", "../x", "a/../../x", "."} {
		if _, err := CleanKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", bad, err)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("x/John Doe_letter.pdf"); got != "application/pdf" {
		t.Fatalf("unexpected pdf type %s", got)
	}
	if got := ContentTypeFor("John_letter.DOCX"); got != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Fatalf("unexpected docx type %s", got)
	}
	if got := ContentTypeFor("noext"); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback type %s", got)
	}
}
