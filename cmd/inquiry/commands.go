package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/kirillkom/case-inquiry/internal/bootstrap"
	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/flowfile"
	"github.com/kirillkom/case-inquiry/internal/observability/logging"
)

func setup(c *cli.Context) error {
	if c.Bool("no-color") {
		color.NoColor = true
	}
	return config.LoadDotEnv(c.String("env-file"))
}

// openApp wires the application with logs on stderr. When index is set the
// corpus is indexed before returning.
func openApp(c *cli.Context, index bool) (*bootstrap.App, error) {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(c.App.ErrWriter, "inquiry-cli", c.String("log-level"))
	app, err := bootstrap.New(c.Context, cfg, bootstrap.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if !index {
		return app, nil
	}
	report, err := app.IndexCorpus(c.Context)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("index corpus: %w", err)
	}
	if !report.Indexed() {
		app.Close()
		return nil, fmt.Errorf("no retrieval algorithm could index the corpus")
	}
	return app, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("question is required")
	}
	out := c.App.Writer

	if c.Bool("remote") {
		app, err := openApp(c, false)
		if err != nil {
			return err
		}
		defer app.Close()
		queue, err := app.ConnectQueue()
		if err != nil {
			return err
		}
		result, err := queue.Ask(c.Context, question)
		if err != nil {
			return err
		}
		printResult(out, 1, result)
		return nil
	}

	app, err := openApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if c.Bool("stream") {
		result, err := app.Inquiry.AskStream(c.Context, question, streamPrinter(out))
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		printSources(out, *result)
		return nil
	}

	result, err := app.Inquiry.Ask(c.Context, question)
	if err != nil {
		return err
	}
	printResult(out, 1, *result)
	return nil
}

func runCommand(c *cli.Context) error {
	var format export.Format
	if raw := c.String("export"); raw != "" {
		parsed, err := export.ParseFormat(raw)
		if err != nil {
			return err
		}
		format = parsed
	}

	app, err := openApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	results, runErr := app.Inquiry.RunDefaultQuestions(c.Context)
	for i, result := range results {
		printResult(c.App.Writer, i+1, result)
	}
	if runErr != nil && len(results) == 0 {
		return runErr
	}
	if runErr != nil {
		fmt.Fprintln(c.App.ErrWriter, warnColor.Sprint("some questions failed: ")+runErr.Error())
	}

	if format != "" {
		key, err := app.Exporter.Save(c.Context, format, app.Inquiry.Results())
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "%s %s\n", labelColor.Sprint("Saved:"), key)
	}
	return nil
}

func indexCommand(c *cli.Context) error {
	app, err := openApp(c, false)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.IndexCorpus(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %d\n", labelColor.Sprint("Chunks:"), report.Chunks)
	for _, o := range report.Outcomes {
		printIndexOutcome(c.App.Writer, o)
	}
	return nil
}

func flowValidateCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("flow file is required")
	}
	graph, err := flowfile.LoadFile(path)
	if err != nil {
		return err
	}
	problems := graph.Problems()
	for _, problem := range problems {
		fmt.Fprintln(c.App.Writer, warnColor.Sprint("problem: ")+problem)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %d problem(s)", path, len(problems))
	}
	fmt.Fprintf(c.App.Writer, "%s %s (entry %s)\n", okColor.Sprint("valid:"), path, graph.Entry())
	return nil
}

func flowRunCommand(c *cli.Context) error {
	app, err := openApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Flow == nil {
		return fmt.Errorf("no flow configured")
	}
	return runFlow(c.Context, c.App.Writer, app.FlowService(), c.Int("max-steps"))
}

type flowRunner interface {
	AnswerCurrent(ctx context.Context) (*domain.FlowStep, error)
	State() domain.FlowState
}

func runFlow(ctx context.Context, out io.Writer, flow flowRunner, maxSteps int) error {
	for n := 1; !flow.State().IsComplete; n++ {
		if n > maxSteps {
			return fmt.Errorf("flow not complete after %d steps", maxSteps)
		}
		step, err := flow.AnswerCurrent(ctx)
		if err != nil {
			return err
		}
		printResult(out, n, step.Result)
		printTransition(out, step.Transition, step.Progress)
		if step.Transition.Outcome == domain.TransitionRejected {
			return errors.New("flow stopped: " + step.Transition.Reason)
		}
	}
	return nil
}
