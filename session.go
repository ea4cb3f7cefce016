package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jward/reach/internal/observability"
	"github.com/jward/reach/internal/resolve"
	reachrt "github.com/jward/reach/internal/runtime"
	"github.com/jward/reach/internal/source"
)

// session is the request-scoped state of one analysis: the file index,
// the global query set and the processed query log. Nothing outlives it.
type session struct {
	engine  *Engine
	logger  *slog.Logger
	metrics *observability.Metrics

	index      *Index
	queries    *querySet
	processed  []Query
	unresolved []UnresolvedSeed
	waves      int
	started    time.Time
}

func newSession(e *Engine) *session {
	m := e.metrics
	if m == nil {
		m = observability.NewMetrics()
	}
	return &session{
		engine:  e,
		logger:  e.logger,
		metrics: m,
		queries: newQuerySet(),
	}
}

func (s *session) run(ctx context.Context, seeds []Seed) (*Result, error) {
	s.started = time.Now()
	e := s.engine

	ix, err := s.indexPhase(ctx)
	if err != nil {
		return nil, fmt.Errorf("reach: %w", err)
	}
	s.index = ix

	if e.seedScript != "" {
		scripted, err := s.scriptSeeds(ctx)
		if err != nil {
			return nil, fmt.Errorf("reach: seed script: %w", err)
		}
		seeds = append(append([]Seed(nil), seeds...), scripted...)
	}

	runErr := s.resolvePhase(ctx, seeds)
	var overflow *OverflowError
	if runErr != nil && !errors.As(runErr, &overflow) {
		return nil, fmt.Errorf("reach: %w", runErr)
	}

	res := s.result()
	if runErr != nil {
		res.Complete = false
		s.logger.Error("worklist stopped early", "error", runErr,
			"processed", overflow.Processed, "pending", overflow.Pending)
		return res, fmt.Errorf("reach: %w", runErr)
	}
	s.logger.Info("analysis complete",
		"files", res.Stats.Files,
		"queries", res.Stats.QueriesProcessed,
		"matches", res.Stats.Matches,
		"unresolved_seeds", len(res.Unresolved),
		"elapsed", res.Stats.Elapsed)
	return res, nil
}

func (s *session) indexPhase(ctx context.Context) (ix *Index, err error) {
	ctx, span := observability.StartSpan(ctx, s.engine.tracer, "reach.index",
		attribute.String("reach.root", s.engine.root))
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		s.metrics.PhaseDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	ix, err = s.buildIndex(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("reach.files", ix.Len()))
	s.logger.Debug("index built", "files", ix.Len(), "elapsed", time.Since(start))
	return ix, nil
}

func (s *session) resolvePhase(ctx context.Context, seeds []Seed) (err error) {
	ctx, span := observability.StartSpan(ctx, s.engine.tracer, "reach.resolve",
		attribute.Int("reach.seeds", len(seeds)),
		attribute.Int("reach.workers", s.engine.workers))
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		s.metrics.PhaseDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	}()

	initial := s.resolveSeeds(seeds)
	if s.engine.workers > 1 {
		err = s.runWaves(ctx, initial)
	} else {
		err = s.runSequential(ctx, initial)
	}
	span.SetAttributes(attribute.Int("reach.queries", len(s.processed)))
	return err
}

// scriptSeeds evaluates the seed script against the built index.
func (s *session) scriptSeeds(ctx context.Context) ([]Seed, error) {
	e := s.engine
	var opts []reachrt.RuntimeOption
	opts = append(opts, reachrt.WithLogger(s.logger))
	path := e.seedScript
	dir := e.root
	if e.scriptsFS != nil {
		opts = append(opts, reachrt.WithRuntimeFS(e.scriptsFS))
	} else {
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.root, path)
		}
		dir = filepath.Dir(path)
	}

	rt := reachrt.NewRuntime(s.index, dir, opts...)
	scripted, err := rt.RunScript(ctx, path, map[string]any{"project_root": e.root})
	if err != nil {
		return nil, err
	}
	out := make([]Seed, len(scripted))
	for i, sd := range scripted {
		out[i] = Seed{Symbol: sd.Symbol, File: sd.File}
	}
	s.logger.Debug("seed script evaluated", "script", e.seedScript, "seeds", len(out))
	return out, nil
}

// resolveSeeds turns seeds into id-bearing queries. A seed resolves to the
// module-scope symbols of its name, or to every symbol of that name when
// none is at module scope. Seeds that resolve to nothing are recorded as
// unresolved.
func (s *session) resolveSeeds(seeds []Seed) []Query {
	var out []Query
	for _, sd := range seeds {
		qs, reason := s.resolveSeed(sd)
		if reason != "" {
			u := UnresolvedSeed{Seed: sd, Reason: reason}
			s.unresolved = append(s.unresolved, u)
			s.metrics.UnresolvedSeeds.Inc()
			s.logger.Warn("unresolved seed", "symbol", sd.Symbol, "file", sd.File, "reason", reason)
			continue
		}
		out = append(out, qs...)
	}
	return out
}

func (s *session) resolveSeed(sd Seed) ([]Query, string) {
	if sd.Symbol == "" {
		return nil, "empty symbol name"
	}
	path := filepath.FromSlash(sd.File)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.engine.root, path)
	}
	canon, err := resolve.Canonical(path)
	if err != nil {
		return nil, "file not found"
	}
	entry, ok := s.index.lookup(canon)
	if !ok {
		return nil, "file not indexed"
	}

	m := entry.model
	named := m.SymbolsNamed(sd.Symbol)
	var ids []source.SymbolID
	for _, id := range named {
		if m.IsTopLevel(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = named
	}
	if len(ids) == 0 {
		return nil, "symbol not declared in file"
	}

	qs := make([]Query, len(ids))
	for i, id := range ids {
		qs[i] = NewQuery(sd.Symbol, canon).WithSymbol(id)
	}
	return qs, ""
}

// result assembles the per-file accumulators.
func (s *session) result() *Result {
	res := &Result{
		Root:        s.engine.root,
		Granularity: s.engine.granularity,
		Complete:    true,
		Started:     s.started,
		Queries:     s.processed,
		Unresolved:  s.unresolved,
	}
	if res.Queries == nil {
		res.Queries = []Query{}
	}
	res.Files = []FileResult{}
	for _, entry := range s.index.order {
		if len(entry.matches) == 0 {
			continue
		}
		fr := FileResult{Path: entry.rel, Hash: entry.hash}
		for id := range entry.matches {
			start, end := entry.model.Span(id)
			n := entry.model.Node(id)
			fr.Excerpts = append(fr.Excerpts, Excerpt{
				Start: start,
				End:   end,
				Line:  n.Line,
				Col:   n.Col,
				Text:  string(entry.model.Source()[start:end]),
			})
		}
		sortExcerpts(fr.Excerpts)
		res.Files = append(res.Files, fr)
		res.Stats.Matches += len(fr.Excerpts)
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })

	res.Stats.Files = s.index.Len()
	res.Stats.QueriesProcessed = len(s.processed)
	res.Stats.Waves = s.waves
	res.Stats.Elapsed = time.Since(s.started)
	return res
}

// sortExcerpts orders by start offset, longer spans first on ties.
func sortExcerpts(xs []Excerpt) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].Start != xs[j].Start {
			return xs[i].Start < xs[j].Start
		}
		return xs[i].End > xs[j].End
	})
}

// relPath renders a canonical path relative to the project root for logs.
func (s *session) relPath(path string) string {
	rel, err := filepath.Rel(s.engine.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
