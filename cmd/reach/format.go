package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIRunSummary:
		formatRunSummaryText(w, v)
	case CLIRunReport:
		formatRunReportText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatRunSummaryText(w io.Writer, s CLIRunSummary) {
	status := "complete"
	if !s.Complete {
		status = "incomplete"
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Output: %s\n", s.Output)
	fmt.Fprintf(w, "Status: %s (%s granularity)\n", status, s.Granularity)
	fmt.Fprintf(w, "Indexed %d files, processed %d queries, recorded %d matches in %s\n",
		s.FilesIndexed, s.QueriesProcessed, s.Matches,
		(time.Duration(s.ElapsedMS) * time.Millisecond).String())
	if s.Waves > 0 {
		fmt.Fprintf(w, "Waves: %d\n", s.Waves)
	}
	fmt.Fprintln(w)
	formatFilesText(w, s.Files)
	formatUnresolvedText(w, s.Unresolved)
}

func formatRunReportText(w io.Writer, r CLIRunReport) {
	run := r.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Root: %s\n", run.Root)
	if run.Output != "" {
		fmt.Fprintf(w, "Output: %s\n", run.Output)
	}
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintf(w, "Started: %s\n", run.Started)
	fmt.Fprintf(w, "Finished: %s\n", run.Finished)
	fmt.Fprintf(w, "Queries: %d, matches: %d\n", run.Queries, run.Matches)
	fmt.Fprintln(w)
	formatFilesText(w, r.Files)
	formatUnresolvedText(w, r.Unresolved)

	if len(r.Queries) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tNAME\tSYMBOL\tORIGIN")
		for _, q := range r.Queries {
			sym := "-"
			if q.SymbolID != nil {
				sym = fmt.Sprintf("#%d", *q.SymbolID)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", q.Seq, q.Name, sym, q.Origin)
		}
		tw.Flush()
	}
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No matches")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tMATCHES")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\n", f.Path, f.Matches)
	}
	tw.Flush()
}

func formatUnresolvedText(w io.Writer, seeds []CLIUnresolved) {
	if len(seeds) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Unresolved seeds:")
	for _, u := range seeds {
		fmt.Fprintf(w, "  %s:%s (%s)\n", u.Symbol, u.File, u.Reason)
	}
}

// formatRunsText formats CLIRun results as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tFILES\tMATCHES\tROOT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Status, r.Started, r.Files, r.Matches, r.Root)
	}
	tw.Flush()
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
