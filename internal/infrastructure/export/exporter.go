// Package export renders the included inquiry results as plain text or XLSX
// and stores the rendered file.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

type Format string

const (
	FormatText Format = "txt"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatText, "text":
		return FormatText, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse export format", fmt.Errorf("unsupported format %q", raw))
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// Exporter renders result lists and saves them to object storage.
type Exporter struct {
	storage ports.ObjectStorage
	title   string
	now     func() time.Time
}

type Option func(*Exporter)

func WithTitle(title string) Option {
	return func(e *Exporter) {
		if strings.TrimSpace(title) != "" {
			e.title = title
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExporter(storage ports.ObjectStorage, opts ...Option) *Exporter {
	e := &Exporter{
		storage: storage,
		title:   "Case Inquiry Results",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render writes only results whose inclusion flag is set.
func (e *Exporter) Render(format Format, results []domain.InquiryResult) ([]byte, error) {
	included := Included(results)
	var buf bytes.Buffer
	switch format {
	case FormatText:
		if err := WriteText(&buf, e.title, e.now(), included); err != nil {
			return nil, err
		}
	case FormatXLSX:
		if err := WriteXLSX(&buf, included); err != nil {
			return nil, err
		}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "render export", fmt.Errorf("unsupported format %q", format))
	}
	return buf.Bytes(), nil
}

// Save renders and stores the export, returning its storage key.
func (e *Exporter) Save(ctx context.Context, format Format, results []domain.InquiryResult) (string, error) {
	if e.storage == nil {
		return "", fmt.Errorf("save export: no storage configured")
	}
	data, err := e.Render(format, results)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("inquiry-%s.%s", e.now().UTC().Format("20060102-150405"), format)
	if err := e.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	return key, nil
}

func Included(results []domain.InquiryResult) []domain.InquiryResult {
	out := make([]domain.InquiryResult, 0, len(results))
	for _, r := range results {
		if r.Included {
			out = append(out, r)
		}
	}
	return out
}
