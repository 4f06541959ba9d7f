package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("truncate = %q, want unchanged under the limit", got)
	}
	got := truncate("a long question about work authorization", 10)
	if got != "a long qu…" {
		t.Fatalf("truncate = %q, want 9 runes plus ellipsis", got)
	}
	// Multi-byte text must be cut on rune boundaries.
	got = truncate("Compétences linguistiques préférées", 12)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n != 12 {
		t.Fatalf("truncate kept %d runes, want 12", n)
	}
}
