package render

import (
	"errors"
	"testing"
)

func TestSubstitute(t *testing.T) {
	got, err := Substitute("As a {position} at { company }, {position}.", map[string]string{
		"position": "CTO",
		"company":  "Acme",
	})
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if got != "As a CTO at Acme, CTO." {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestSubstituteEmptyValue(t *testing.T) {
	got, err := Substitute("[{title}]", map[string]string{"title": ""})
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if got != "[]" {
		t.Fatalf("expected empty substitution, got %q", got)
	}
}

func TestSubstituteUnknownField(t *testing.T) {
	if _, err := Substitute("{missing}", map[string]string{}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestNamesDeduplicates(t *testing.T) {
	names, err := Names("{a}{b}{a}")
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names %v", names)
	}
}
