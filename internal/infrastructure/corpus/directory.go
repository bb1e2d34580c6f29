package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/chunking"
)

// Lister enumerates stored documents by extension.
type Lister interface {
	List(ctx context.Context, exts ...string) ([]string, error)
}

// TextExtractor reads the text of one stored document.
type TextExtractor interface {
	Extract(ctx context.Context, key string) (string, error)
}

// DirectoryLoader turns a directory of text documents into chunk inputs.
type DirectoryLoader struct {
	lister    Lister
	extractor TextExtractor
	chunker   ports.Chunker
	exts      []string
	logger    *slog.Logger
}

type LoaderOption func(*DirectoryLoader)

func WithExtensions(exts ...string) LoaderOption {
	return func(l *DirectoryLoader) {
		if len(exts) > 0 {
			l.exts = exts
		}
	}
}

func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *DirectoryLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewDirectoryLoader(lister Lister, extractor TextExtractor, chunker ports.Chunker, opts ...LoaderOption) *DirectoryLoader {
	l := &DirectoryLoader{
		lister:    lister,
		extractor: extractor,
		chunker:   chunker,
		exts:      []string{".txt", ".md"},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every matching document. Files that cannot be decoded as text
// are skipped with a warning; any other read failure aborts the load.
func (l *DirectoryLoader) Load(ctx context.Context) ([]domain.ChunkInput, error) {
	keys, err := l.lister.List(ctx, l.exts...)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	var out []domain.ChunkInput
	for _, key := range keys {
		text, err := l.extractor.Extract(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				l.logger.Warn("corpus_document_skipped", "file", key, "error", err)
				continue
			}
			return nil, fmt.Errorf("extract %s: %w", key, err)
		}
		out = append(out, SplitDocument(path.Base(key), text, l.chunker)...)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "load corpus", errors.New("no text documents found"))
	}
	l.logger.Info("corpus_loaded", "documents", len(keys), "chunks", len(out))
	return out, nil
}

// SplitDocument groups paragraphs under the nearest preceding heading and
// chunks each group, numbering chunks from zero across the whole file.
func SplitDocument(filename, text string, chunker ports.Chunker) []domain.ChunkInput {
	var (
		out     []domain.ChunkInput
		section string
		body    []string
	)
	flush := func() {
		if len(body) == 0 {
			return
		}
		for _, piece := range chunker.Split(strings.Join(body, "\n\n")) {
			out = append(out, domain.ChunkInput{
				Text:        piece,
				Filename:    filename,
				ChunkNum:    len(out),
				SectionName: section,
			})
		}
		body = body[:0]
	}

	for _, p := range chunking.Paragraphs(text) {
		first, rest, _ := strings.Cut(p, "\n")
		if heading, ok := Heading(first); ok {
			flush()
			section = heading
			if rest == "" {
				continue
			}
			p = rest
		}
		body = append(body, p)
	}
	flush()
	return out
}

// Heading reports whether a line is a section heading: a markdown "#" line,
// or a short line that is upper case or ends with a colon.
func Heading(paragraph string) (string, bool) {
	p := strings.TrimSpace(paragraph)
	if p == "" || strings.Contains(p, "\n") || len([]rune(p)) > 80 {
		return "", false
	}
	if strings.HasPrefix(p, "#") {
		h := strings.TrimSpace(strings.TrimLeft(p, "#"))
		return h, h != ""
	}
	if strings.HasSuffix(p, ":") && len(strings.Fields(p)) <= 8 {
		return strings.TrimSpace(strings.TrimSuffix(p, ":")), true
	}

	letters, upper := 0, 0
	for _, r := range p {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 3 && upper == letters && !strings.ContainsAny(p[len(p)-1:], ".?!") {
		return p, true
	}
	return "", false
}
