package chunking

import (
	"strings"
	"testing"
)

func TestSplitPacksParagraphs(t *testing.T) {
	s := NewSplitter(60, 10)
	text := "The plaintiff is John Smith.\n\nThe defendant is XYZ Corp.\n\n\nDamages claimed: $500,000."

	got := s.Split(text)
	want := []string{
		"The plaintiff is John Smith.\n\nThe defendant is XYZ Corp.",
		"Damages claimed: $500,000.",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitWindowsLongParagraph(t *testing.T) {
	s := NewSplitter(10, 2)
	got := s.Split(strings.Repeat("a", 25))
	if len(got) != 3 {
		t.Fatalf("expected 3 windows, got %d: %q", len(got), got)
	}
	for _, chunk := range got {
		if n := len([]rune(chunk)); n > 10 {
			t.Fatalf("window longer than chunk size: %d", n)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter(0, 0).Split(" \n\n \t"); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

func TestNewSplitterNormalizesOverlap(t *testing.T) {
	s := NewSplitter(100, 200)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap 25, got %d", s.Overlap)
	}
}
