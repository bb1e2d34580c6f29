package plaintext

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/storage/localfs"
)

func TestExtractSanitizes(t *testing.T) {
	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "complaint.txt", strings.NewReader("\uFEFF  The plaintiff\x00 filed.\r\nNext line.\x07  ")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	text, err := NewExtractor(store).Extract(ctx, "complaint.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "The plaintiff filed.\nNext line." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "scan.txt", strings.NewReader("\xff\xfe\x00binary")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err = NewExtractor(store).Extract(ctx, "scan.txt")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
