package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

const (
	headerRule = "============================================================"
	blockRule  = "------------------------------------------------------------"
)

// WriteText renders results in the fixed header / question / answer /
// citation block layout. Results are written in the order given.
func WriteText(w io.Writer, title string, generatedAt time.Time, results []domain.InquiryResult) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, headerRule)
	fmt.Fprintln(bw, strings.ToUpper(strings.TrimSpace(title)))
	fmt.Fprintf(bw, "Generated: %s\n", generatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(bw, "Questions: %d\n", len(results))
	fmt.Fprintln(bw, headerRule)

	for i, r := range results {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "Q%d. %s\n", i+1, r.Question)
		fmt.Fprintf(bw, "Answer: %s\n", r.Answer)
		citations := r.CitationText
		if citations == "" {
			citations = "none"
		}
		fmt.Fprintf(bw, "Sources: %s\n", citations)
		fmt.Fprintln(bw, blockRule)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text export: %w", err)
	}
	return nil
}
