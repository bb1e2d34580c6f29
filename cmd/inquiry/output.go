package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

var (
	questionColor = color.New(color.FgCyan, color.Bold)
	labelColor    = color.New(color.Bold)
	okColor       = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed, color.Bold)
)

func printResult(out io.Writer, n int, result domain.InquiryResult) {
	fmt.Fprintln(out, questionColor.Sprintf("Q%d. %s", n, result.Question))
	fmt.Fprintf(out, "%s %s\n", labelColor.Sprint("Answer:"), result.Answer)
	printSources(out, result)
	fmt.Fprintln(out)
}

func printSources(out io.Writer, result domain.InquiryResult) {
	sources := result.CitationText
	if sources == "" {
		sources = "none"
	}
	fmt.Fprintf(out, "%s %s\n", labelColor.Sprint("Sources:"), sources)
	if result.FellBack {
		fmt.Fprintln(out, warnColor.Sprint("(generation unavailable, answered by extraction)"))
	}
}

func printTransition(out io.Writer, tr domain.Transition, progress domain.FlowProgress) {
	switch tr.Outcome {
	case domain.TransitionCompleted:
		fmt.Fprintln(out, okColor.Sprint("flow complete"))
	case domain.TransitionDefaulted:
		fmt.Fprintln(out, warnColor.Sprintf("-> %s (no option matched, took first branch)", tr.To))
	case domain.TransitionRejected:
		fmt.Fprintln(out, errorColor.Sprintf("answer rejected: %s", tr.Reason))
	default:
		fmt.Fprintf(out, "-> %s (%d answered, about %d left)\n", tr.To, progress.Answered, progress.EstimatedRemaining)
	}
}

func printIndexOutcome(out io.Writer, o domain.IndexOutcome) {
	switch {
	case o.Indexed:
		fmt.Fprintf(out, "%s %s in %s\n", okColor.Sprint("indexed"), o.Algorithm, o.Duration)
	case o.Skipped:
		fmt.Fprintf(out, "%s %s: %s\n", warnColor.Sprint("skipped"), o.Algorithm, o.Reason)
	default:
		fmt.Fprintf(out, "%s %s: %s\n", errorColor.Sprint("failed"), o.Algorithm, o.Reason)
	}
}

// streamPrinter writes streamed answer text as it arrives. A replacing chunk
// starts a fresh "Answer:" line so partial generated text is not run into it.
func streamPrinter(out io.Writer) func(domain.AnswerChunk) error {
	return func(chunk domain.AnswerChunk) error {
		if chunk.Replace {
			_, err := fmt.Fprintf(out, "\n%s %s", labelColor.Sprint("Answer:"), chunk.Text)
			return err
		}
		_, err := fmt.Fprint(out, chunk.Text)
		return err
	}
}
