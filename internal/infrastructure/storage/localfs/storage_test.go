package localfs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save(context.Background(), "exports/results.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(context.Background(), "exports/results.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../etc/passwd", "/abs/path", "", "a/../../b"} {
		err := s.Save(context.Background(), key, strings.NewReader("x"))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("key %q: expected ErrInvalidInput, got %v", key, err)
		}
	}
}

func TestListFiltersByExtension(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"b.txt", "a.TXT", "notes/c.md", "image.png", ".hidden.txt"} {
		if err := s.Save(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatalf("Save(%s) error = %v", key, err)
		}
	}

	keys, err := s.List(ctx, ".txt", ".md")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := "a.TXT,b.txt,notes/c.md"
	if got := strings.Join(keys, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
