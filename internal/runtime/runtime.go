package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/reach/internal/source"
)

// Model is the part of a parsed file that seed scripts can see.
// *source.Model satisfies it.
type Model interface {
	Dialect() string
	Source() []byte
	Symbols() []source.Symbol
	Node(id source.NodeID) source.Node
	IsTopLevel(sym source.SymbolID) bool
}

// Project is the indexed tree a seed script browses. Paths are
// slash-separated and relative to the project root.
type Project interface {
	Files() []string
	Model(path string) (Model, bool)
}

// Seed is a symbol name and the file declaring it, as emitted by seed().
type Seed struct {
	Symbol string
	File   string
}

// Runtime embeds a Risor VM and exposes a project's files and symbol
// tables to seed scripts.
type Runtime struct {
	project    Project
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the script-facing log object to l.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime over project, loading relative script
// paths from scriptsDir. project may be nil, in which case files() is
// empty and seed() still records.
func NewRuntime(project Project, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		project:    project,
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. It returns the seeds the
// script emitted, in emission order.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) ([]Seed, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, src string, extraGlobals map[string]any) ([]Seed, error) {
	return r.eval(ctx, src, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, src, label string, extraGlobals map[string]any) ([]Seed, error) {
	seeds := &seedSink{}
	globals := r.buildGlobals(seeds, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, src, opts...); err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return seeds.list(), nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// For fs.FS, strip any leading path separator so the path is
		// relative within the FS (e.g., "/seeds/api.risor" -> "seeds/api.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(seeds *seedSink, extra map[string]any) map[string]any {
	globals := map[string]any{
		"files":   makeFilesFn(r.project),
		"symbols": makeSymbolsFn(r.project),
		"text":    makeTextFn(r.project),
		"query":   makeQueryFn(r.project),
		"seed":    makeSeedFn(seeds),
		"log":     mustProxy(&logObject{logger: r.logger.With("component", "seed-script")}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// seedSink accumulates seed() calls for one evaluation.
type seedSink struct {
	mu    sync.Mutex
	seeds []Seed
}

func (s *seedSink) add(sd Seed) {
	s.mu.Lock()
	s.seeds = append(s.seeds, sd)
	s.mu.Unlock()
}

func (s *seedSink) list() []Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Seed(nil), s.seeds...)
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
