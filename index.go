package reach

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jward/reach/internal/discover"
	"github.com/jward/reach/internal/resolve"
	reachrt "github.com/jward/reach/internal/runtime"
	"github.com/jward/reach/internal/source"
	"github.com/jward/reach/internal/store"
)

// fileEntry is the index entry of one canonical file. The model is
// immutable; the accumulators are owned by whichever goroutine is
// scanning the file.
type fileEntry struct {
	path  string // canonical absolute
	rel   string // slash-separated, relative to the project root
	hash  string
	model SourceModel

	matches    map[source.NodeID]struct{}
	discovered map[source.SymbolID]struct{}
	collected  map[source.SymbolID]bool
}

func newFileEntry(path, rel, hash string, m SourceModel) *fileEntry {
	return &fileEntry{
		path:       path,
		rel:        rel,
		hash:       hash,
		model:      m,
		matches:    make(map[source.NodeID]struct{}),
		discovered: make(map[source.SymbolID]struct{}),
		collected:  make(map[source.SymbolID]bool),
	}
}

// Index maps canonical paths to file entries. It is built once and never
// grows during resolution.
type Index struct {
	entries map[string]*fileEntry
	order   []*fileEntry // by canonical path
	byRel   map[string]*fileEntry
}

func newIndex() *Index {
	return &Index{
		entries: make(map[string]*fileEntry),
		byRel:   make(map[string]*fileEntry),
	}
}

// insert adds e unless its canonical path is already present. A second
// insert for the same path is a no-op.
func (ix *Index) insert(e *fileEntry) bool {
	if _, ok := ix.entries[e.path]; ok {
		return false
	}
	ix.entries[e.path] = e
	ix.byRel[e.rel] = e
	i := sort.Search(len(ix.order), func(i int) bool { return ix.order[i].path >= e.path })
	ix.order = append(ix.order, nil)
	copy(ix.order[i+1:], ix.order[i:])
	ix.order[i] = e
	return true
}

// lookup returns the entry for a canonical path.
func (ix *Index) lookup(path string) (*fileEntry, bool) {
	e, ok := ix.entries[path]
	return e, ok
}

// Len returns the number of indexed files.
func (ix *Index) Len() int { return len(ix.order) }

// Files returns the project-relative paths of the indexed files, ordered
// by canonical path.
func (ix *Index) Files() []string {
	out := make([]string, len(ix.order))
	for i, e := range ix.order {
		out[i] = e.rel
	}
	return out
}

// Model returns the model of a project-relative path.
func (ix *Index) Model(rel string) (reachrt.Model, bool) {
	e, ok := ix.byRel[filepath.ToSlash(rel)]
	if !ok {
		return nil, false
	}
	return e.model, true
}

// indexItem holds everything a parse worker needs.
type indexItem struct {
	path string
	rel  string
}

type indexResult struct {
	item  indexItem
	entry *fileEntry
	err   error
}

// buildIndex enumerates and parses the project using a three-phase
// pipeline:
//
//	Phase A (serial):   Enumerate, canonicalize and drop duplicate paths.
//	Phase B (parallel): Read, parse and bind via a worker pool.
//	Phase C (serial):   Insert entries in canonical order.
func (s *session) buildIndex(ctx context.Context) (*Index, error) {
	e := s.engine

	opts := e.discoverOpts
	if glob, ok := e.excludeOutput(); ok {
		opts.Exclude = append(append([]string(nil), opts.Exclude...), glob)
	}
	rels, err := discover.Files(e.root, opts)
	if err != nil {
		return nil, ioError(err)
	}

	// ---- Phase A: Serial canonicalization ----
	seen := make(map[string]string, len(rels))
	var items []indexItem
	for _, rel := range rels {
		if !source.Supported(rel) {
			continue
		}
		path, err := resolve.Canonical(filepath.Join(e.root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("canonicalize %s: %w", rel, ioError(err))
		}
		if first, dup := seen[path]; dup {
			s.logger.Debug("duplicate path", "path", rel, "canonical", path, "first", first)
			continue
		}
		seen[path] = rel
		items = append(items, indexItem{path: path, rel: rel})
	}

	ix := newIndex()
	if len(items) == 0 {
		return ix, nil
	}

	// ---- Phase B: Parallel parse ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(items)))

	workCh := make(chan indexItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	resultCh := make(chan indexResult, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- indexResult{item: item, err: err}
					continue
				}
				entry, err := s.parseFile(ctx, item)
				resultCh <- indexResult{item: item, entry: entry, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial insert ----
	var results []indexResult
	for res := range resultCh {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].item.path < results[j].item.path })

	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", res.item.rel, res.err))
			continue
		}
		ix.insert(res.entry)
		s.metrics.FilesIndexed.Inc()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		for _, err := range errs {
			s.logger.Error("indexing failed", "error", err)
		}
		return nil, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return ix, nil
}

// parseFile does Phase B work for a single file.
func (s *session) parseFile(ctx context.Context, item indexItem) (*fileEntry, error) {
	content, err := os.ReadFile(item.path)
	if err != nil {
		return nil, ioError(err)
	}

	start := time.Now()
	m, err := s.engine.parse(ctx, item.path, content)
	if err != nil {
		return nil, err
	}
	s.metrics.ParseDuration.WithLabelValues(m.Dialect()).Observe(time.Since(start).Seconds())

	return newFileEntry(item.path, item.rel, store.ContentHash(content), m), nil
}
