package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/reach/internal/config"
	"github.com/jward/reach/internal/store"
)

var (
	flagRunID   string
	flagQueries bool
	flagLimit   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a recorded run",
	Long:  "Prints the latest run recorded in the report database, or the run named by --run.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	reportCmd.Flags().StringVar(&flagRunID, "run", "", "run id (default: latest)")
	reportCmd.Flags().BoolVar(&flagQueries, "queries", false, "include the processed queries")
	runsCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of runs")
}

// openReportStore opens the report database named by --db, falling back to
// the project's [report] db setting.
func openReportStore() (*store.Store, error) {
	project, err := resolveTargetDir(flagProject)
	if err != nil {
		return nil, err
	}
	path := flagDB
	if path == "" {
		cfg, err := config.LoadProject(project, "")
		if err != nil {
			return nil, err
		}
		path = cfg.Report.DB
	}
	path = resolveDBPath(findRepoRoot(project), path)
	if path == "" {
		return nil, errors.New("no report database: set --db or [report] db")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("report database not found: %s", path)
	}
	return store.NewStore(path)
}

func runReport(cmd *cobra.Command, args []string) error {
	st, err := openReportStore()
	if err != nil {
		return outputError("report", err)
	}
	defer st.Close()

	var run *store.Run
	if flagRunID != "" {
		run, err = st.RunByID(flagRunID)
	} else {
		run, err = st.LatestRun()
	}
	if err != nil {
		return outputError("report", err)
	}
	if run == nil {
		if flagRunID != "" {
			return outputError("report", fmt.Errorf("run not found: %s", flagRunID))
		}
		return outputError("report", errors.New("no runs recorded"))
	}

	report, err := buildReport(st, run, flagQueries)
	if err != nil {
		return outputError("report", err)
	}
	return outputResult(CLIResult{Command: "report", Results: report})
}

func runRuns(cmd *cobra.Command, args []string) error {
	st, err := openReportStore()
	if err != nil {
		return outputError("runs", err)
	}
	defer st.Close()

	runs, err := st.Runs(flagLimit)
	if err != nil {
		return outputError("runs", err)
	}
	out := make([]CLIRun, len(runs))
	for i, r := range runs {
		out[i] = toCLIRun(r)
	}
	count := len(out)
	return outputResult(CLIResult{Command: "runs", Results: out, TotalCount: &count})
}

func buildReport(st *store.Store, run *store.Run, withQueries bool) (CLIRunReport, error) {
	report := CLIRunReport{Run: toCLIRun(run), Files: []CLIFile{}}

	files, err := st.FilesByRun(run.ID)
	if err != nil {
		return report, err
	}
	for _, f := range files {
		report.Files = append(report.Files, CLIFile{Path: f.Path, Hash: f.Hash, Matches: f.MatchCount})
	}

	unresolved, err := st.UnresolvedByRun(run.ID)
	if err != nil {
		return report, err
	}
	for _, u := range unresolved {
		report.Unresolved = append(report.Unresolved, CLIUnresolved{Symbol: u.Symbol, File: u.File, Reason: u.Reason})
	}

	if withQueries {
		queries, err := st.QueriesByRun(run.ID)
		if err != nil {
			return report, err
		}
		for _, q := range queries {
			report.Queries = append(report.Queries, CLIQuery{Seq: q.Seq, Name: q.Name, SymbolID: q.SymbolID, Origin: q.Origin})
		}
	}
	return report, nil
}

func toCLIRun(r *store.Run) CLIRun {
	return CLIRun{
		ID:          r.ID,
		Root:        r.Root,
		Output:      r.Output,
		Granularity: r.Granularity,
		Status:      r.Status,
		Error:       r.Error,
		Started:     r.Started.UTC().Format(time.RFC3339),
		Finished:    r.Finished.UTC().Format(time.RFC3339),
		Files:       r.FileCount,
		Queries:     r.QueryCount,
		Matches:     r.MatchCount,
		Unresolved:  r.UnresolvedCount,
	}
}
