package reach

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jward/reach/internal/discover"
	"github.com/jward/reach/internal/observability"
	"github.com/jward/reach/internal/resolve"
	"github.com/jward/reach/internal/source"
)

// DefaultMaxIterations caps the queries processed by one run.
const DefaultMaxIterations = 100000

// Engine holds the configuration of analyses over one project root. An
// Engine keeps no per-run state; every Analyze call builds its own session.
type Engine struct {
	root          string // canonical absolute
	output        string // absolute
	logger        *slog.Logger
	workers       int
	maxIterations int
	timeout       time.Duration
	granularity   Granularity
	discoverOpts  discover.Options
	resolveOpts   resolve.Options
	resolver      ModuleResolver
	parse         Parser
	metrics       *observability.Metrics
	tracer        trace.Tracer
	seedScript    string
	scriptsFS     fs.FS
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput sets the output root. Relative paths are taken from the
// project root. The default is "../output".
func WithOutput(dir string) Option {
	return func(e *Engine) {
		e.output = dir
	}
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers sets the parse pool size and, above one, enables the
// wave-parallel worklist. Zero or less means one worker per CPU for parsing
// and a sequential worklist.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithMaxIterations caps the number of queries processed. Exceeding the
// cap fails the run with ErrWorklistOverflow.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithTimeout bounds the wall-clock time of the worklist. Zero means no
// bound. Exceeding it fails the run with ErrWorklistOverflow.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithGranularity selects the reported node for each occurrence.
func WithGranularity(g Granularity) Option {
	return func(e *Engine) {
		e.granularity = g
	}
}

// WithDiscoverOptions sets the file enumeration filters. An empty
// extension list means every supported source extension.
func WithDiscoverOptions(opts discover.Options) Option {
	return func(e *Engine) {
		e.discoverOpts = opts
	}
}

// WithResolverOptions configures the built-in module resolver.
func WithResolverOptions(opts resolve.Options) Option {
	return func(e *Engine) {
		e.resolveOpts = opts
	}
}

// WithResolver replaces the built-in module resolver.
func WithResolver(r ModuleResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithParser replaces the built-in tree-sitter parser.
func WithParser(p Parser) Option {
	return func(e *Engine) {
		e.parse = p
	}
}

// WithMetrics records run metrics into m. Without it every run gets a
// fresh, private registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracerProvider sets the provider of the engine's spans. The default
// is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = observability.Tracer(tp)
	}
}

// WithSeedScript adds the seeds emitted by a Risor script, evaluated
// after the index is built. Relative paths are taken from the project root.
func WithSeedScript(path string) Option {
	return func(e *Engine) {
		e.seedScript = path
	}
}

// WithScriptsFS loads the seed script, and its imports, from fsys instead
// of from disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine for the project at root.
func New(root string, opts ...Option) (*Engine, error) {
	canon, err := resolve.Canonical(root)
	if err != nil {
		return nil, fmt.Errorf("reach: project root: %w", ioError(err))
	}

	e := &Engine{
		root:          canon,
		output:        filepath.Join("..", "output"),
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
		granularity:   GranularityStatement,
		resolveOpts:   resolve.DefaultOptions(),
		parse:         parseSource,
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, err := ParseGranularity(string(e.granularity)); err != nil {
		return nil, fmt.Errorf("reach: %w", err)
	}
	if e.maxIterations <= 0 {
		return nil, fmt.Errorf("reach: max iterations must be positive, got %d", e.maxIterations)
	}
	if e.timeout < 0 {
		return nil, fmt.Errorf("reach: timeout must not be negative, got %s", e.timeout)
	}
	if !filepath.IsAbs(e.output) {
		e.output = filepath.Join(e.root, e.output)
	}
	e.output = filepath.Clean(e.output)
	if len(e.discoverOpts.Extensions) == 0 {
		e.discoverOpts.Extensions = source.Extensions()
	}
	if e.resolver == nil {
		r, err := resolve.New(e.resolveOpts)
		if err != nil {
			return nil, fmt.Errorf("reach: %w", err)
		}
		e.resolver = r
	}
	if e.tracer == nil {
		e.tracer = observability.Tracer(nil)
	}
	return e, nil
}

// Root returns the canonical project root.
func (e *Engine) Root() string { return e.root }

// Output returns the absolute output root.
func (e *Engine) Output() string { return e.output }

// Analyze indexes the project and resolves seeds to a fixed point.
//
// On ErrWorklistOverflow the returned Result is non-nil and incomplete; on
// any other error it is nil.
func (e *Engine) Analyze(ctx context.Context, seeds []Seed) (*Result, error) {
	s := newSession(e)
	return s.run(ctx, seeds)
}

// WriteOutput writes res under the output root. Incomplete results are
// refused.
func (e *Engine) WriteOutput(ctx context.Context, res *Result) (err error) {
	if !res.Complete {
		return fmt.Errorf("reach: refusing to write incomplete result: %w", ErrWorklistOverflow)
	}
	_, span := observability.StartSpan(ctx, e.tracer, "reach.output",
		attribute.String("reach.output", e.output),
		attribute.Int("reach.files", len(res.Files)))
	defer func() { observability.EndSpan(span, err) }()

	return WriteOutput(res, e.output)
}

// excludeOutput returns a glob excluding the output root when it lies
// inside the project, so reruns never index their own output.
func (e *Engine) excludeOutput() (string, bool) {
	rel, err := filepath.Rel(e.root, e.output)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel) + "/**", true
}
