package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/reach"
	"github.com/jward/reach/internal/config"
	"github.com/jward/reach/internal/discover"
	"github.com/jward/reach/internal/observability"
	"github.com/jward/reach/internal/resolve"
	"github.com/jward/reach/internal/store"
	"github.com/jward/reach/scripts"
)

var (
	flagOutput        string
	flagSeeds         []string
	flagSeedScript    string
	flagConfig        string
	flagWorkers       int
	flagMaxIterations int
	flagTimeout       time.Duration
	flagGranularity   string
	flagMetricsFile   string
)

// builtinPrefix selects an embedded seed script, e.g. "builtin:exports".
const builtinPrefix = "builtin:"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Find every transitive use of the seed symbols",
	Long: "Indexes the project, follows the seeds across files until no new symbol is found, " +
		"and writes one file of matching statements per source file under the output root.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&flagOutput, "output", "", "output root, relative to the project (default ../output)")
	f.StringArrayVar(&flagSeeds, "seed", nil, "seed as symbol:path, repeatable")
	f.StringVar(&flagSeedScript, "seed-script", "", "Risor script emitting seeds, or builtin:<name>")
	f.StringVar(&flagConfig, "config", "", "config file (default <project>/reach.toml when present)")
	f.IntVar(&flagWorkers, "workers", 0, "parse workers; above 1 also resolves in parallel waves")
	f.IntVar(&flagMaxIterations, "max-iterations", 0, "cap on processed queries")
	f.DurationVar(&flagTimeout, "timeout", 0, "wall-clock cap on resolution (0 = none)")
	f.StringVar(&flagGranularity, "granularity", "", "reported node: statement|top-level")
	f.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
}

func runRun(cmd *cobra.Command, args []string) error {
	project, err := resolveTargetDir(flagProject)
	if err != nil {
		return outputError("run", err)
	}
	cfg, err := loadConfig(cmd, project)
	if err != nil {
		return outputError("run", err)
	}
	seeds, err := collectSeeds(cfg)
	if err != nil {
		return outputError("run", err)
	}

	metrics := observability.NewMetrics()
	engine, err := reach.New(project, engineOptions(cfg, metrics)...)
	if err != nil {
		return outputError("run", fmt.Errorf("creating engine: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, runErr := engine.Analyze(ctx, seeds)
	if runErr == nil {
		if err := engine.WriteOutput(ctx, res); err != nil {
			runErr = err
		}
	}

	var runID string
	if dbPath := resolveDBPath(findRepoRoot(project), cfg.Report.DB); dbPath != "" {
		id, err := recordRun(dbPath, engine, res, runErr)
		if err != nil {
			logger.Error("recording run failed", "db", dbPath, "error", err)
		}
		runID = id
	}
	if cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.File); err != nil {
			logger.Error("writing metrics failed", "file", cfg.Metrics.File, "error", err)
		}
	}

	if runErr != nil {
		return outputError("run", runErr)
	}
	return outputResult(CLIResult{Command: "run", Results: runSummary(runID, engine, res)})
}

// loadConfig layers reach.toml, REACH_* variables (process first, then
// <project>/.env) and the flags set on cmd.
func loadConfig(cmd *cobra.Command, project string) (*config.Config, error) {
	cfg, err := config.LoadProject(project, flagConfig)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, filepath.Join(project, ".env"), os.LookupEnv); err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output = flagOutput
	}
	if f.Changed("seed-script") {
		cfg.SeedScript = flagSeedScript
	}
	if f.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if f.Changed("max-iterations") {
		cfg.MaxIterations = flagMaxIterations
	}
	if f.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if f.Changed("granularity") {
		cfg.Granularity = flagGranularity
	}
	if f.Changed("metrics-file") {
		cfg.Metrics.File = flagMetricsFile
	}
	if flagDB != "" {
		cfg.Report.DB = flagDB
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// collectSeeds returns the configured seeds followed by the --seed flags.
func collectSeeds(cfg *config.Config) ([]reach.Seed, error) {
	var seeds []reach.Seed
	for _, s := range cfg.Seeds {
		seeds = append(seeds, reach.Seed{Symbol: s.Symbol, File: s.File})
	}
	for _, raw := range flagSeeds {
		s, err := parseSeed(raw)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}

// parseSeed parses "symbol:path". The path may itself contain colons.
func parseSeed(raw string) (reach.Seed, error) {
	symbol, path, ok := strings.Cut(raw, ":")
	if !ok || symbol == "" || path == "" {
		return reach.Seed{}, fmt.Errorf("invalid seed %q: want symbol:path", raw)
	}
	return reach.Seed{Symbol: symbol, File: path}, nil
}

func engineOptions(cfg *config.Config, metrics *observability.Metrics) []reach.Option {
	ropts := resolve.DefaultOptions()
	if len(cfg.Resolve.Extensions) > 0 {
		ropts.Extensions = cfg.Resolve.Extensions
	}
	if len(cfg.Resolve.Conditions) > 0 {
		ropts.Conditions = cfg.Resolve.Conditions
	}
	if len(cfg.Resolve.ExtensionAlias) > 0 {
		ropts.ExtensionAlias = cfg.Resolve.ExtensionAlias
	}
	if cfg.Resolve.CacheSize > 0 {
		ropts.CacheSize = cfg.Resolve.CacheSize
	}

	opts := []reach.Option{
		reach.WithOutput(cfg.Output),
		reach.WithLogger(logger),
		reach.WithWorkers(cfg.Workers),
		reach.WithMaxIterations(cfg.MaxIterations),
		reach.WithTimeout(cfg.Timeout),
		reach.WithGranularity(reach.Granularity(cfg.Granularity)),
		reach.WithDiscoverOptions(discover.Options{
			Extensions: cfg.Files.Extensions,
			Exclude:    cfg.Files.Exclude,
		}),
		reach.WithResolverOptions(ropts),
		reach.WithMetrics(metrics),
	}
	if cfg.SeedScript != "" {
		path, builtin := strings.CutPrefix(cfg.SeedScript, builtinPrefix)
		if builtin {
			opts = append(opts, reach.WithScriptsFS(scripts.FS))
			path = "seeds/" + path + ".risor"
		}
		opts = append(opts, reach.WithSeedScript(path))
	}
	return opts
}

// recordRun stores the run report in the database at dbPath.
func recordRun(dbPath string, engine *reach.Engine, res *reach.Result, runErr error) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return "", err
	}
	return reach.RecordRun(st, engine.Root(), engine.Output(), res, runErr)
}

func runSummary(runID string, engine *reach.Engine, res *reach.Result) CLIRunSummary {
	sum := CLIRunSummary{
		RunID:            runID,
		Root:             res.Root,
		Output:           engine.Output(),
		Granularity:      string(res.Granularity),
		Complete:         res.Complete,
		FilesIndexed:     res.Stats.Files,
		QueriesProcessed: res.Stats.QueriesProcessed,
		Matches:          res.Stats.Matches,
		Waves:            res.Stats.Waves,
		ElapsedMS:        res.Stats.Elapsed.Milliseconds(),
		Files:            make([]CLIFile, 0, len(res.Files)),
	}
	for _, fr := range res.Files {
		sum.Files = append(sum.Files, CLIFile{Path: fr.Path, Hash: fr.Hash, Matches: len(fr.Excerpts)})
	}
	for _, u := range res.Unresolved {
		sum.Unresolved = append(sum.Unresolved, CLIUnresolved{Symbol: u.Seed.Symbol, File: u.Seed.File, Reason: u.Reason})
	}
	return sum
}
