package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "inquiry",
		Usage: "Ask cited questions about a set of case documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with configuration overrides",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer one follow-up question",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Print generated tokens as they arrive",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Send the question to a worker over NATS instead of answering locally",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Answer the configured default questions",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "export",
						Usage: "Also save the results in this format (txt, xlsx)",
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Index the configured corpus and print per-algorithm status",
				Action: indexCommand,
			},
			{
				Name:  "flow",
				Usage: "Work with the branching question flow",
				Subcommands: []*cli.Command{
					{
						Name:      "validate",
						Usage:     "Check a flow file for structural problems",
						ArgsUsage: "FILE",
						Action:    flowValidateCommand,
					},
					{
						Name:   "run",
						Usage:  "Answer the flow from its entry question until it completes",
						Action: flowRunCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "max-steps",
								Usage: "Stop after this many answered questions",
								Value: 100,
							},
						},
					},
				},
			},
		},
	}
}
