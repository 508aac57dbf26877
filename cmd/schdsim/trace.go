package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/schd/datarecording"
	"github.com/sarchlab/schd/execunit"
	"github.com/sarchlab/schd/planner"
	"github.com/sarchlab/schd/tracing"
)

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <db>",
		Short: "Summarize a trace database written by run --trace-db.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := traceFile(args[0])
			if err != nil {
				return err
			}

			reader, err := datarecording.NewReader(path)
			if err != nil {
				return err
			}
			defer reader.Close()

			s, err := tracing.Summarize(cmd.Context(), reader,
				execunit.JobKind, planner.ThreadKind)
			if err != nil {
				return err
			}

			printTraceSummary(cmd.OutOrStdout(), s)

			return nil
		},
	}
}

// traceFile accepts the name given to --trace-db as well as the file that
// the recorder created from it.
func traceFile(name string) (string, error) {
	for _, path := range []string{name, name + ".sqlite3"} {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", fmt.Errorf("trace database %s not found", name)
}

func printTraceSummary(w io.Writer, s tracing.TraceSummary) {
	printUsages(w, "units", s.Units)
	printUsages(w, "threads", s.Threads)

	fmt.Fprintf(w, "contention tags: %d\n", s.Tags[execunit.ContentionTag])
}

func printUsages(w io.Writer, title string, usages []tracing.TaskUsage) {
	fmt.Fprintf(w, "%s:\n", title)

	for _, u := range usages {
		fmt.Fprintf(w, "  %s: count=%d busy=%g first=%g last=%g\n",
			u.Name, u.Count, u.Busy, u.First, u.Last)
	}
}
